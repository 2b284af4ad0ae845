package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhisperClient_Transcribe(t *testing.T) {
	var gotAuth, gotModel, gotLanguage string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			buf := make([]byte, 64)
			n, _ := f.Read(buf)
			gotAudio = buf[:n]
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"mujhe product banana hai"}`))
	}))
	defer srv.Close()

	client := NewWhisperClient(WhisperConfig{APIKey: "test-key", BaseURL: srv.URL})
	text, err := client.Transcribe(context.Background(), []byte("audio-bytes"), "hi")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "mujhe product banana hai" {
		t.Errorf("text = %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", gotModel)
	}
	if gotLanguage != "hi" {
		t.Errorf("language = %q, want hi", gotLanguage)
	}
	if string(gotAudio) != "audio-bytes" {
		t.Errorf("audio = %q", gotAudio)
	}
}

func TestWhisperClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewWhisperClient(WhisperConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := client.Transcribe(context.Background(), []byte("x"), ""); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestWhisperClient_EmptyAudio(t *testing.T) {
	client := NewWhisperClient(WhisperConfig{APIKey: "k"})
	_, err := client.Transcribe(context.Background(), nil, "")
	if !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"[voice input received - transcription pending]", true},
		{"[Silence]", true},
		{"[no speech detected]", true},
		{"create a product", false},
		{"उत्पाद बनाओ", false},
	}
	for _, tt := range tests {
		if got := IsPlaceholder(tt.text); got != tt.want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

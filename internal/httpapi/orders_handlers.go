package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/notifications"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
)

// handleCreateOrder places a pending order and alerts the seller over push,
// SMS, and the ops Discord channel.
func (r *Router) handleCreateOrder(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.ProductID == "" {
		http.Error(w, `{"error": "product_id is required"}`, http.StatusBadRequest)
		return
	}
	if body.Quantity <= 0 {
		body.Quantity = 1
	}

	product, err := r.store.GetProductWithSeller(req.Context(), body.ProductID)
	if err != nil || product.Status != "active" {
		http.Error(w, `{"error": "product not available"}`, http.StatusNotFound)
		return
	}
	if product.SellerID == authUser.ID {
		http.Error(w, `{"error": "cannot order your own product"}`, http.StatusBadRequest)
		return
	}

	order, err := r.store.CreateOrder(req.Context(), body.ProductID, authUser.ID, body.Quantity)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error": "product not available"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("orders: create failed for buyer %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to place order"}`, http.StatusInternalServerError)
		return
	}

	r.metrics.OrdersPlaced.Inc()
	r.notifySellerOfOrder(context.WithoutCancel(req.Context()), order, product)

	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

// notifySellerOfOrder fans out a new-order alert. Push for smartphone
// sellers, SMS for feature phones. Failures are logged, never surfaced to
// the buyer.
func (r *Router) notifySellerOfOrder(ctx context.Context, order *store.Order, product *store.ProductListItem) {
	buyer, err := r.store.GetUserByID(ctx, order.BuyerID)
	buyerName := "A buyer"
	if err == nil && buyer.Name != nil {
		buyerName = *buyer.Name
	}

	tokens, err := r.store.GetUserPushTokens(ctx, order.SellerID)
	if err != nil {
		r.logger.Printf("orders: fetching push tokens for seller %s failed: %v", order.SellerID, err)
	}
	for _, t := range tokens {
		if t.Platform != "ios" {
			continue
		}
		if err := r.apns.SendNewOrderNotification(t.Token, notifications.OrderNotification{
			OrderID:     order.ID,
			ProductName: product.Name,
			Quantity:    order.Quantity,
			Unit:        product.Unit,
			BuyerName:   buyerName,
			TotalPrice:  order.TotalPrice,
		}); err != nil {
			r.logger.Printf("orders: push to seller %s failed: %v", order.SellerID, err)
		}
	}

	// Feature phone sellers only hear about orders through SMS.
	if len(tokens) == 0 {
		if err := r.sms.SendNewOrderSMS(ctx, product.SellerPhone, product.Name, order.Quantity, order.TotalPrice); err != nil {
			r.logger.Printf("orders: SMS to seller %s failed: %v", order.SellerID, err)
		}
	}

	r.discord.NotifyOrderPlaced(ctx, order.ID, product.Name, order.Quantity, order.TotalPrice)
}

// handleListOrders returns the caller's orders. ?role=seller returns orders
// on their listings, anything else returns their purchases.
func (r *Router) handleListOrders(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var (
		orders []store.OrderListItem
		err    error
	)
	if req.URL.Query().Get("role") == "seller" {
		orders, err = r.store.ListOrdersForSeller(req.Context(), authUser.ID, parseLimit(req))
	} else {
		orders, err = r.store.ListOrdersForBuyer(req.Context(), authUser.ID, parseLimit(req))
	}
	if err != nil {
		r.logger.Printf("orders: list failed for %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to list orders"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (r *Router) handleAcceptOrder(w http.ResponseWriter, req *http.Request) {
	r.settleOrder(w, req, store.OrderAccepted)
}

func (r *Router) handleDeclineOrder(w http.ResponseWriter, req *http.Request) {
	r.settleOrder(w, req, store.OrderDeclined)
}

// settleOrder accepts or declines a pending order on behalf of its seller
// and tells the buyer what happened.
func (r *Router) settleOrder(w http.ResponseWriter, req *http.Request, status string) {
	authUser := getAuthUser(req.Context())
	orderID := req.PathValue("id")

	order, err := r.store.SettleOrder(req.Context(), orderID, authUser.ID, status)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotPending) {
			http.Error(w, `{"error": "order is not pending"}`, http.StatusConflict)
			return
		}
		r.logger.Printf("orders: settle %s as %s failed: %v", orderID, status, err)
		http.Error(w, `{"error": "failed to update order"}`, http.StatusInternalServerError)
		return
	}

	r.metrics.RecordOrderSettled(status)
	r.notifyBuyerOfSettlement(context.WithoutCancel(req.Context()), order, status)

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (r *Router) notifyBuyerOfSettlement(ctx context.Context, order *store.Order, status string) {
	product, err := r.store.GetProduct(ctx, order.ProductID)
	if err != nil {
		r.logger.Printf("orders: loading product %s for notification failed: %v", order.ProductID, err)
		return
	}

	tokens, _ := r.store.GetUserPushTokens(ctx, order.BuyerID)
	for _, t := range tokens {
		if t.Platform != "ios" {
			continue
		}
		if err := r.apns.SendOrderSettledNotification(t.Token, order.ID, product.Name, status); err != nil {
			r.logger.Printf("orders: push to buyer %s failed: %v", order.BuyerID, err)
		}
	}

	if len(tokens) == 0 {
		buyer, err := r.store.GetUserByID(ctx, order.BuyerID)
		if err != nil {
			return
		}
		if status == store.OrderAccepted {
			err = r.sms.SendOrderAcceptedSMS(ctx, buyer.Phone, product.Name)
		} else {
			err = r.sms.SendOrderDeclinedSMS(ctx, buyer.Phone, product.Name)
		}
		if err != nil {
			r.logger.Printf("orders: SMS to buyer %s failed: %v", order.BuyerID, err)
		}
	}
}

// handleCancelOrder lets a buyer cancel their own pending order.
func (r *Router) handleCancelOrder(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	orderID := req.PathValue("id")

	if err := r.store.CancelOrder(req.Context(), orderID, authUser.ID); err != nil {
		if errors.Is(err, store.ErrOrderNotPending) {
			http.Error(w, `{"error": "order is not pending"}`, http.StatusConflict)
			return
		}
		r.logger.Printf("orders: cancel %s failed: %v", orderID, err)
		http.Error(w, `{"error": "failed to cancel order"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

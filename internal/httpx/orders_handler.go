package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-order-app/internal/apperr"
	"github.com/ariefcatur/go-order-app/internal/logger"
	"github.com/ariefcatur/go-order-app/internal/menu"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/ariefcatur/go-order-app/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatusUpdater moves an order along its lifecycle. Both backends implement it.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, to orders.Status) (orders.Order, error)
}

type AppHandler struct {
	Store        *store.Store
	Orders       StatusUpdater // optional; enables the fulfilment route
	LoginLimiter *RateLimiter  // optional
	Log          *zap.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addItemReq struct {
	ID string `json:"id"`
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

type statusReq struct {
	Status orders.Status `json:"status"`
}

type cartResp struct {
	Items orders.Items    `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func (h *AppHandler) Register(r chi.Router) {
	r.Get("/menu", h.listMenu)

	r.Group(func(r chi.Router) {
		r.Use(RequireReady(h.Store))

		r.Get("/state", h.getState)
		r.Delete("/state/error", h.clearError)

		r.Group(func(r chi.Router) {
			r.Use(RequireGuest(h.Store))
			login := http.HandlerFunc(h.login)
			if h.LoginLimiter != nil {
				r.Method(http.MethodPost, "/auth/login", h.LoginLimiter.Middleware(login))
			} else {
				r.Post("/auth/login", login)
			}
			r.Post("/auth/register", h.register)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(h.Store))
			r.Post("/auth/logout", h.logout)
			r.Get("/cart", h.getCart)
			r.Post("/cart/items", h.addItem)
			r.Patch("/cart/items/{id}", h.updateQuantity)
			r.Delete("/cart/items/{id}", h.removeItem)
			r.Delete("/cart", h.clearCart)
			r.Get("/orders", h.listOrders)
			r.Post("/orders/refresh", h.refreshOrders)
			r.Post("/checkout", h.checkout)
			r.Get("/notifications", h.notifications)
			r.Patch("/profile", h.updateProfile)
			r.Post("/profile/password", h.updatePassword)
		})
	})

	if h.Orders != nil {
		r.Post("/admin/orders/{id}/status", h.updateStatus)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *AppHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		logger.OrNop(h.Log).Warn("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, code, errorBody{Error: apperr.Message(err)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return false
	}
	return true
}

func (h *AppHandler) listMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, menu.All())
}

func (h *AppHandler) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Snapshot())
}

func (h *AppHandler) clearError(w http.ResponseWriter, r *http.Request) {
	h.Store.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.Store.Login(r.Context(), req.Email, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Store.Snapshot())
}

func (h *AppHandler) register(w http.ResponseWriter, r *http.Request) {
	var req orders.NewUser
	if !decode(w, r, &req) {
		return
	}
	if err := store.ValidateRegistration(req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Register(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Store.Snapshot())
}

func (h *AppHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Logout(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Store.Snapshot())
}

// cart answers from one snapshot so items, total and count agree.
func (h *AppHandler) cart() cartResp {
	st := h.Store.Snapshot()
	return cartResp{Items: st.Cart, Total: st.Cart.Total(), Count: st.Cart.Count()}
}

func (h *AppHandler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cart())
}

func (h *AppHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if !decode(w, r, &req) {
		return
	}
	item, ok := menu.Find(req.ID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "menu item not found"})
		return
	}
	h.Store.AddToCart(item.LineItem())
	writeJSON(w, http.StatusOK, h.cart())
}

func (h *AppHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityReq
	if !decode(w, r, &req) {
		return
	}
	h.Store.UpdateQuantity(chi.URLParam(r, "id"), req.Quantity)
	writeJSON(w, http.StatusOK, h.cart())
}

func (h *AppHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.Store.RemoveFromCart(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, h.cart())
}

func (h *AppHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.Store.ClearCart()
	writeJSON(w, http.StatusOK, h.cart())
}

func (h *AppHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Snapshot().Orders)
}

func (h *AppHandler) refreshOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.FetchOrders(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Store.Snapshot().Orders)
}

func (h *AppHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req store.OrderRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Store.Checkout(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *AppHandler) notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Notifications())
}

func (h *AppHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req orders.ProfileUpdate
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Store.UpdateProfile(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AppHandler) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req store.PasswordChange
	if !decode(w, r, &req) {
		return
	}
	if err := h.Store.UpdatePassword(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateStatus stands in for the kitchen side. The store is refreshed here
// too since the memory backend publishes no events.
func (h *AppHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.FetchOrders(r.Context()); err != nil {
		logger.OrNop(h.Log).Warn("refresh after status change failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, o)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/grocer/internal/cart"
	"github.com/flicky/grocer/internal/dto"
	"github.com/flicky/grocer/internal/middleware"
	"github.com/flicky/grocer/internal/service"
)

// CartHandler serves the session cart. Anonymous visitors have a cart too;
// only checkout requires login.
type CartHandler struct {
	svc   *service.CartService
	store cart.Store
}

func NewCartHandler(svc *service.CartService, store cart.Store) *CartHandler {
	return &CartHandler{svc: svc, store: store}
}

func (h *CartHandler) load(c *gin.Context) (*cart.Cart, bool) {
	crt, err := h.store.Load(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return crt, true
}

func (h *CartHandler) saveAndRender(c *gin.Context, crt *cart.Cart, status int) {
	if err := h.store.Save(c.Request.Context(), middleware.GetSessionID(c), crt); err != nil {
		respondError(c, err)
		return
	}
	h.render(c, crt, status)
}

func (h *CartHandler) render(c *gin.Context, crt *cart.Cart, status int) {
	lines, err := h.svc.Items(c.Request.Context(), crt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, toCartResponse(lines))
}

func (h *CartHandler) GetCart(c *gin.Context) {
	crt, ok := h.load(c)
	if !ok {
		return
	}
	h.render(c, crt, http.StatusOK)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	crt, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.svc.Add(c.Request.Context(), crt, req.ProductID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	h.saveAndRender(c, crt, http.StatusCreated)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	crt, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.svc.SetQuantity(c.Request.Context(), crt, productID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	h.saveAndRender(c, crt, http.StatusOK)
}

func (h *CartHandler) DeleteItem(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	crt, ok := h.load(c)
	if !ok {
		return
	}
	h.svc.Remove(crt, productID)
	h.saveAndRender(c, crt, http.StatusOK)
}

func toCartResponse(lines []service.CartLine) dto.CartResponse {
	items := make([]dto.CartItemResponse, 0, len(lines))
	count := 0
	for _, l := range lines {
		items = append(items, dto.CartItemResponse{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Image:     l.Product.Image,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal,
		})
		count += l.Quantity
	}
	return dto.CartResponse{Items: items, Total: service.SumLines(lines), Count: count}
}

// internal/handlers/catalog/catalog_handler.go
package catalog

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ordering-service/internal/domain/catalog"
	"ordering-service/internal/domain/customer"
	"ordering-service/internal/pkg/response"
)

type Service interface {
	GetItem(ctx context.Context, id string) (*catalog.Item, error)
	UpdateItem(ctx context.Context, id string, req *catalog.UpdateItemRequest) (*catalog.Item, error)
	GetCustomer(ctx context.Context, id string) (*customer.Customer, error)
	UpdateCustomer(ctx context.Context, id string, req *customer.UpdateCustomerRequest) (*customer.Customer, error)
	RecentOrders(ctx context.Context) ([]catalog.Order, error)
	CreateOrder(ctx context.Context, req *catalog.CreateOrderRequest) (*catalog.Order, error)
}

type CatalogHandler struct {
	service Service
}

func NewCatalogHandler(service Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) GetItem(c *gin.Context) {
	item, err := h.service.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "item", item)
}

func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	var req catalog.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	item, err := h.service.UpdateItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "item updated", item)
}

func (h *CatalogHandler) GetCustomer(c *gin.Context) {
	cust, err := h.service.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "customer", cust)
}

func (h *CatalogHandler) UpdateCustomer(c *gin.Context) {
	var req customer.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	cust, err := h.service.UpdateCustomer(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "customer updated", cust)
}

func (h *CatalogHandler) RecentOrders(c *gin.Context) {
	orders, err := h.service.RecentOrders(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "recent orders", orders)
}

func (h *CatalogHandler) CreateOrder(c *gin.Context) {
	var req catalog.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "order placed", order)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/middleware"
	"github.com/flicky/go-storefront-api/internal/service"
)

type ReviewHandler struct {
	reviewService *service.ReviewService
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func (h *ReviewHandler) Create(c *gin.Context) {
	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	review, err := h.reviewService.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			fail(c, http.StatusNotFound, "product not found")
		case errors.Is(err, service.ErrDuplicateReview):
			fail(c, http.StatusBadRequest, "you have already reviewed this product")
		default:
			fail(c, http.StatusInternalServerError, "server error creating review")
		}
		return
	}

	ok(c, http.StatusCreated, "review submitted for approval", gin.H{"review": review})
}

func (h *ReviewHandler) ListByProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid product ID")
		return
	}

	reviews, err := h.reviewService.ListByProduct(c.Request.Context(), productID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "server error fetching reviews")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"reviews": reviews})
}

func (h *ReviewHandler) ListAll(c *gin.Context) {
	reviews, err := h.reviewService.ListAll(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "server error fetching reviews")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"reviews": reviews})
}

func (h *ReviewHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid review ID")
		return
	}

	if err := h.reviewService.Approve(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrReviewNotFound) {
			fail(c, http.StatusNotFound, "review not found")
			return
		}
		fail(c, http.StatusInternalServerError, "server error approving review")
		return
	}
	ok(c, http.StatusOK, "review approved", nil)
}

func (h *ReviewHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid review ID")
		return
	}

	if err := h.reviewService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrReviewNotFound) {
			fail(c, http.StatusNotFound, "review not found")
			return
		}
		fail(c, http.StatusInternalServerError, "server error deleting review")
		return
	}
	ok(c, http.StatusOK, "review deleted", nil)
}

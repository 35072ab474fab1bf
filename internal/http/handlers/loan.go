package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gigcredit/backend/internal/domain/credit"
	loandomain "github.com/gigcredit/backend/internal/domain/loan"
)

type BorrowerLoanService interface {
	GetEligibility(ctx context.Context, borrowerID string) (*credit.Eligibility, error)
	Apply(ctx context.Context, borrowerID string, in loandomain.ApplyInput) (*loandomain.Entity, error)
	ListBorrowerLoans(ctx context.Context, borrowerID string, limit, offset int32) ([]loandomain.Entity, error)
	GetLoan(ctx context.Context, callerID string, loanID string) (*loandomain.Entity, error)
	AcceptOffer(ctx context.Context, borrowerID, loanID, offerID string) (*loandomain.Entity, error)
	RejectOffer(ctx context.Context, borrowerID, loanID, offerID string) (*loandomain.Entity, error)
	Cancel(ctx context.Context, borrowerID, loanID string) (*loandomain.Entity, error)
	SubmitPayment(ctx context.Context, borrowerID, loanID string, in loandomain.SubmitPaymentInput) (*loandomain.Entity, error)
}

type LoanHandler struct {
	loanService BorrowerLoanService
}

func NewLoanHandler(loanService BorrowerLoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

func (h *LoanHandler) GetEligibility(c *gin.Context) {
	out, err := h.loanService.GetEligibility(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) Apply(c *gin.Context) {
	var req loandomain.ApplyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.loanService.Apply(c.Request.Context(), c.GetString("user_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *LoanHandler) ListMine(c *gin.Context) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	offset, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)
	items, err := h.loanService.ListBorrowerLoans(c.Request.Context(), c.GetString("user_id"), int32(limit), int32(offset))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	item, err := h.loanService.GetLoan(c.Request.Context(), c.GetString("user_id"), loanID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) AcceptOffer(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	offerID := strings.TrimSpace(c.Param("offerId"))
	if loanID == "" || offerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.loanService.AcceptOffer(c.Request.Context(), c.GetString("user_id"), loanID, offerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) RejectOffer(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	offerID := strings.TrimSpace(c.Param("offerId"))
	if loanID == "" || offerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.loanService.RejectOffer(c.Request.Context(), c.GetString("user_id"), loanID, offerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) Cancel(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	item, err := h.loanService.Cancel(c.Request.Context(), c.GetString("user_id"), loanID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) SubmitPayment(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	var req loandomain.SubmitPaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.loanService.SubmitPayment(c.Request.Context(), c.GetString("user_id"), loanID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

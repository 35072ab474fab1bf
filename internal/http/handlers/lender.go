package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	loandomain "github.com/gigcredit/backend/internal/domain/loan"
)

type LenderLoanService interface {
	ListApplications(ctx context.Context, f loandomain.LenderFilter) ([]loandomain.TaggedLoan, error)
	GetLoan(ctx context.Context, callerID string, loanID string) (*loandomain.Entity, error)
	MakeOffer(ctx context.Context, loanID string, in loandomain.MakeOfferInput) (*loandomain.Entity, error)
	Pass(ctx context.Context, loanID, lenderID, reason string) error
	WithdrawOffer(ctx context.Context, loanID, lenderID string) (*loandomain.Entity, error)
	Disburse(ctx context.Context, lenderID, loanID string) (*loandomain.Entity, error)
	ConfirmPayment(ctx context.Context, lenderID, loanID, recordID string) (*loandomain.Entity, error)
	RejectPayment(ctx context.Context, lenderID, loanID, recordID, reason string) (*loandomain.Entity, error)
	MarkDefault(ctx context.Context, lenderID, loanID string) (*loandomain.Entity, error)
	LenderStats(ctx context.Context, lenderID string) (*loandomain.LenderStats, error)
}

type LenderHandler struct {
	loanService LenderLoanService
}

func NewLenderHandler(loanService LenderLoanService) *LenderHandler {
	return &LenderHandler{loanService: loanService}
}

func (h *LenderHandler) ListApplications(c *gin.Context) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	offset, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)
	items, err := h.loanService.ListApplications(c.Request.Context(), loandomain.LenderFilter{
		LenderID: c.GetString("user_id"),
		Status:   strings.TrimSpace(c.DefaultQuery("status", "pending")),
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *LenderHandler) GetApplication(c *gin.Context) {
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
	ownership, myOffer := loandomain.OwnershipFor(c.GetString("user_id"), item)
	tagged := loandomain.TaggedLoan{Entity: *item, Ownership: ownership}
	if myOffer != nil {
		cp := *myOffer
		tagged.MyOffer = &cp
		tagged.MyOfferStatus = cp.Status
	}
	c.JSON(http.StatusOK, tagged)
}

func (h *LenderHandler) MakeOffer(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	var req loandomain.MakeOfferInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	req.LenderID = c.GetString("user_id")
	req.LenderName = c.GetString("user_name")
	req.LenderOrganization = c.GetString("user_org")
	item, err := h.loanService.MakeOffer(c.Request.Context(), loanID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *LenderHandler) Pass(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := h.loanService.Pass(c.Request.Context(), loanID, c.GetString("user_id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "passed"})
}

func (h *LenderHandler) WithdrawOffer(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	item, err := h.loanService.WithdrawOffer(c.Request.Context(), loanID, c.GetString("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LenderHandler) Disburse(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	item, err := h.loanService.Disburse(c.Request.Context(), c.GetString("user_id"), loanID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LenderHandler) ConfirmPayment(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	recordID := strings.TrimSpace(c.Param("recordId"))
	if loanID == "" || recordID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := h.loanService.ConfirmPayment(c.Request.Context(), c.GetString("user_id"), loanID, recordID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LenderHandler) RejectPayment(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	recordID := strings.TrimSpace(c.Param("recordId"))
	if loanID == "" || recordID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	item, err := h.loanService.RejectPayment(c.Request.Context(), c.GetString("user_id"), loanID, recordID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LenderHandler) MarkDefault(c *gin.Context) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_loan_id"})
		return
	}
	item, err := h.loanService.MarkDefault(c.Request.Context(), c.GetString("user_id"), loanID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LenderHandler) Stats(c *gin.Context) {
	stats, err := h.loanService.LenderStats(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

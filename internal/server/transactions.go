package server

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
)

type createTransactionRequest struct {
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	UserLabel   string   `json:"user_label"`
}

// handleCreateTransaction records a single transaction. The taxonomy
// suggests a category; a supplied user label overrides it and is fed back
// as a taxonomy example.
func (s *Server) handleCreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	result, err := s.taxonomy.Match(ctx, req.Description)
	if err != nil {
		s.classificationError(c, err)
		return
	}

	txn := model.Transaction{
		Description:       req.Description,
		Amount:            req.Amount,
		Date:              model.Payload{"date": req.Date}.Date(),
		UserLabel:         req.UserLabel,
		PredictedCategory: result.Category.Name,
		PredictedScore:    result.Score,
		Entities:          result.Entities,
	}
	if err := s.storage.CreateTransaction(ctx, &txn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save transaction"})
		s.logger.Error("failed to save transaction", "error", err)
		return
	}

	if req.UserLabel != "" {
		if _, err := s.taxonomy.Update(ctx, req.UserLabel, req.Description); err != nil {
			s.logger.Warn("failed to feed user label to taxonomy",
				"category", req.UserLabel, "error", err)
		}
	}

	c.JSON(http.StatusCreated, txn)
}

// handleListTransactions lists transactions, most recent first.
func (s *Server) handleListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	transactions, err := s.storage.GetTransactions(c.Request.Context(), service.TransactionFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		s.logger.Error("failed to list transactions", "error", err)
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	txn, err := s.storage.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transaction"})
		s.logger.Error("failed to load transaction", "id", id, "error", err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	if err := s.storage.DeleteTransaction(c.Request.Context(), id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete transaction"})
		s.logger.Error("failed to delete transaction", "id", id, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

// handleExport streams all transactions in the requested format. The
// effective category is the user label when present, otherwise the
// prediction.
func (s *Server) handleExport(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	transactions, err := s.storage.GetTransactions(c.Request.Context(), service.TransactionFilter{
		Limit: 1 << 30,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		s.logger.Error("failed to export transactions", "error", err)
		return
	}

	switch format {
	case "json":
		c.Header("Content-Disposition", `attachment; filename="transactions.json"`)
		c.JSON(http.StatusOK, transactions)
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="transactions.csv"`)
		if err := writeCSV(c, transactions); err != nil {
			s.logger.Error("failed to write export", "error", err)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", format)})
	}
}

func writeCSV(c *gin.Context, transactions []model.Transaction) error {
	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"id", "date", "description", "amount", "category", "score", "user_label"}); err != nil {
		return err
	}

	for _, txn := range transactions {
		var date, amount string
		if txn.Date != nil {
			date = txn.Date.Format("2006-01-02")
		}
		if txn.Amount != nil {
			amount = strconv.FormatFloat(*txn.Amount, 'f', 2, 64)
		}

		record := []string{
			strconv.FormatInt(txn.ID, 10),
			date,
			txn.Description,
			amount,
			txn.EffectiveCategory(),
			strconv.FormatFloat(txn.PredictedScore, 'f', 4, 64),
			txn.UserLabel,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

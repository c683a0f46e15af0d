package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/ingest"
	"github.com/ledgersift/ledgersift/internal/model"
)

// handleUpload accepts a bulk upload as either a multipart file or a raw
// JSON array, creates the batch, and hands it to a pool worker. The client
// gets the initial snapshot back immediately and polls or streams progress.
func (s *Server) handleUpload(c *gin.Context) {
	filename, payloads, err := s.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ingest.Validate(payloads); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := s.storage.CreateBatch(c.Request.Context(), filename, payloads)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create batch"})
		s.logger.Error("failed to create batch", "error", err)
		return
	}

	batchID := batch.ID
	if err := s.pool.Submit(func() {
		// The request context dies with the response; the batch outlives it.
		if _, procErr := s.processor.Process(context.Background(), batchID); procErr != nil {
			s.logger.Error("batch processing failed", "batch_id", batchID, "error", procErr)
		}
	}); err != nil {
		s.logger.Error("failed to submit batch to pool", "batch_id", batchID, "error", err)
		// No worker will ever pick this batch up; fail it so pollers are
		// not left watching a PENDING batch forever.
		if failErr := s.storage.SetBatchStatus(c.Request.Context(), batchID, model.BatchFailed); failErr != nil {
			s.logger.Error("failed to mark batch failed", "batch_id", batchID, "error", failErr)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker pool unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, batch)
}

func (s *Server) readUpload(c *gin.Context) (string, []model.Payload, error) {
	file, header, err := c.Request.FormFile("file")
	if err == nil {
		defer func() { _ = file.Close() }()
		payloads, parseErr := ingest.Parse(header.Filename, file)
		return header.Filename, payloads, parseErr
	}

	// No multipart file: treat the body as a JSON array of records.
	payloads, parseErr := ingest.ParseJSON(c.Request.Body)
	return "", payloads, parseErr
}

// handleListBatches returns batch history, most recent first.
func (s *Server) handleListBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	batches, err := s.storage.ListBatches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list batches"})
		s.logger.Error("failed to list batches", "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// handleGetBatch returns one progress snapshot.
func (s *Server) handleGetBatch(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return
	}

	batch, err := s.storage.GetBatch(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
		s.logger.Error("failed to load batch", "batch_id", id, "error", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// handleGetBatchItems returns the raw items of a batch, including per-item
// errors for records whose classification exhausted its retries.
func (s *Server) handleGetBatchItems(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return
	}

	if _, err := s.storage.GetBatch(c.Request.Context(), id); err != nil {
		if errors.Is(err, common.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
		return
	}

	items, err := s.storage.GetBatchItems(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load items"})
		s.logger.Error("failed to load batch items", "batch_id", id, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// handleStreamBatch streams progress snapshots over SSE, one per second,
// closing after the first terminal snapshot.
func (s *Server) handleStreamBatch(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return
	}

	if _, err := s.storage.GetBatch(c.Request.Context(), id); err != nil {
		if errors.Is(err, common.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	c.Stream(func(_ io.Writer) bool {
		batch, err := s.storage.GetBatch(ctx, id)
		if err != nil {
			c.SSEvent("error", gin.H{"error": "failed to load batch"})
			return false
		}

		c.SSEvent("progress", batch)
		if batch.Status.Terminal() {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			return true
		}
	})
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/review"
	"github.com/ledgersift/ledgersift/internal/taxonomy"
)

type matchRequest struct {
	Text string `json:"text"`
}

type bulkClassifyRequest struct {
	Items []string `json:"items"`
}

type updateTaxonomyRequest struct {
	Category string `json:"category"`
	Example  string `json:"example"`
}

// handleMatch classifies a single text.
func (s *Server) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := s.taxonomy.Match(c.Request.Context(), req.Text)
	if err != nil {
		s.classificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleClassifyBulk classifies a list of texts and returns them split into
// confidence partitions. Order within each partition follows input order.
func (s *Server) handleClassifyBulk(c *gin.Context) {
	var req bulkClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	results, err := s.taxonomy.MatchBulk(c.Request.Context(), req.Items)
	if err != nil {
		s.classificationError(c, err)
		return
	}

	high, low := taxonomy.Partition(results, s.taxonomy.Threshold())
	c.JSON(http.StatusOK, gin.H{
		"high_confidence": high,
		"low_confidence":  low,
	})
}

// handleGetTaxonomy returns the current categories and their examples.
func (s *Server) handleGetTaxonomy(c *gin.Context) {
	categories := s.taxonomy.Categories()
	if categories == nil {
		categories = []model.Category{}
	}
	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"threshold":  s.taxonomy.Threshold(),
	})
}

// handleUpdateTaxonomy appends an example to a category, creating the
// category when it does not exist.
func (s *Server) handleUpdateTaxonomy(c *gin.Context) {
	var req updateTaxonomyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	count, err := s.taxonomy.Update(c.Request.Context(), req.Category, req.Example)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCorrection) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update taxonomy"})
		s.logger.Error("taxonomy update failed", "category", req.Category, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "count": count})
}

// handleCorrections applies a list of human corrections: each one feeds the
// taxonomy and relabels matching transactions. The body is either a bare
// list or an {"items": [...]} wrapper.
func (s *Server) handleCorrections(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	corrections, err := decodeCorrections(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	applied, err := s.reviewer.Apply(c.Request.Context(), corrections)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCorrection) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "applied": applied})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply corrections", "applied": applied})
		s.logger.Error("corrections failed", "applied", applied, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "applied": applied})
}

func decodeCorrections(data []byte) ([]review.Correction, error) {
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var body struct {
			Items []review.Correction `json:"items"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		return body.Items, nil
	}

	var corrections []review.Correction
	if err := json.Unmarshal(data, &corrections); err != nil {
		return nil, err
	}
	return corrections, nil
}

func (s *Server) classificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrEmptyTaxonomy):
		c.JSON(http.StatusConflict, gin.H{"error": "taxonomy is empty"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
		s.logger.Error("classification failed", "error", err)
	}
}

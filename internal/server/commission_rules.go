package server

import (
	"net/http"
	"strings"
	"time"

	ruledomain "github.com/marketlane/backoffice/internal/rule/domain"
	"github.com/gin-gonic/gin"
)

type createCommissionRuleRequest struct {
	Name          string     `json:"name"`
	SellerID      *string    `json:"seller_id"`
	CategoryID    *string    `json:"category_id"`
	Rate          float64    `json:"rate"`
	FixedFee      *float64   `json:"fixed_fee"`
	MinRate       *float64   `json:"min_rate"`
	MaxRate       *float64   `json:"max_rate"`
	Priority      int        `json:"priority"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
	Reason        *string    `json:"reason"`
}

type updateCommissionRuleRequest struct {
	Name             *string    `json:"name,omitempty"`
	SellerID         *string    `json:"seller_id,omitempty"`
	CategoryID       *string    `json:"category_id,omitempty"`
	Rate             *float64   `json:"rate,omitempty"`
	FixedFee         *float64   `json:"fixed_fee,omitempty"`
	MinRate          *float64   `json:"min_rate,omitempty"`
	MaxRate          *float64   `json:"max_rate,omitempty"`
	Priority         *int       `json:"priority,omitempty"`
	EffectiveFrom    *time.Time `json:"effective_from,omitempty"`
	EffectiveTo      *time.Time `json:"effective_to,omitempty"`
	ClearEffectiveTo bool       `json:"clear_effective_to,omitempty"`
	Reason           *string    `json:"reason,omitempty"`
}

func (s *Server) CreateCommissionRule(c *gin.Context) {
	var req createCommissionRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Create(c.Request.Context(), ruledomain.CreateRequest{
		Family:        ruledomain.FamilyCommission,
		Name:          req.Name,
		ScopeKey:      req.SellerID,
		CategoryID:    req.CategoryID,
		Rate:          req.Rate,
		FixedFee:      req.FixedFee,
		MinRate:       req.MinRate,
		MaxRate:       req.MaxRate,
		Priority:      req.Priority,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		Reason:        req.Reason,
	})
	s.metrics.RecordMutation(string(ruledomain.FamilyCommission), "create", mutationOutcome(err))
	if err != nil {
		if isConflict(err) {
			s.metrics.RecordConflict(string(ruledomain.FamilyCommission))
		}
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "commission_rule.create", resp)
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCommissionRules(c *gin.Context) {
	var query struct {
		SellerID   string `form:"seller_id"`
		CategoryID string `form:"category_id"`
		IsActive   string `form:"is_active"`
		SortBy     string `form:"sort_by"`
		OrderBy    string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isActive, err := parseOptionalBool(query.IsActive)
	if err != nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "invalid is_active"))
		return
	}

	resp, err := s.ruleSvc.List(c.Request.Context(), ruledomain.ListRequest{
		Family:     ruledomain.FamilyCommission,
		ScopeKey:   optionalString(query.SellerID),
		CategoryID: optionalString(query.CategoryID),
		IsActive:   isActive,
		SortBy:     query.SortBy,
		OrderBy:    query.OrderBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCommissionRule(c *gin.Context) {
	resp, err := s.ruleSvc.Get(c.Request.Context(), ruledomain.FamilyCommission, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCommissionRule(c *gin.Context) {
	var req updateCommissionRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Update(c.Request.Context(), ruledomain.UpdateRequest{
		Family:           ruledomain.FamilyCommission,
		ID:               c.Param("id"),
		Name:             req.Name,
		ScopeKey:         req.SellerID,
		CategoryID:       req.CategoryID,
		Rate:             req.Rate,
		FixedFee:         req.FixedFee,
		MinRate:          req.MinRate,
		MaxRate:          req.MaxRate,
		Priority:         req.Priority,
		EffectiveFrom:    req.EffectiveFrom,
		EffectiveTo:      req.EffectiveTo,
		ClearEffectiveTo: req.ClearEffectiveTo,
		Reason:           req.Reason,
	})
	s.metrics.RecordMutation(string(ruledomain.FamilyCommission), "update", mutationOutcome(err))
	if err != nil {
		if isConflict(err) {
			s.metrics.RecordConflict(string(ruledomain.FamilyCommission))
		}
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "commission_rule.update", resp)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteCommissionRule(c *gin.Context) {
	resp, err := s.ruleSvc.Delete(c.Request.Context(), ruledomain.DeleteRequest{
		Family: ruledomain.FamilyCommission,
		ID:     c.Param("id"),
		Reason: optionalString(c.Query("reason")),
	})
	s.metrics.RecordMutation(string(ruledomain.FamilyCommission), "delete", mutationOutcome(err))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "commission_rule.delete", resp)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveCommissionRate(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "as_of must be RFC3339"))
		return
	}

	req := ruledomain.ResolveRequest{
		Family:     ruledomain.FamilyCommission,
		ScopeKey:   optionalString(c.Query("seller_id")),
		CategoryID: optionalString(c.Query("category_id")),
	}
	if asOf != nil {
		req.AsOf = *asOf
	}

	resolution, err := s.ruleSvc.Resolve(c.Request.Context(), req)
	if err != nil {
		s.metrics.RecordResolution(string(ruledomain.FamilyCommission), "error")
		AbortWithError(c, err)
		return
	}
	if resolution == nil {
		s.metrics.RecordResolution(string(ruledomain.FamilyCommission), "none")
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"matched": false}})
		return
	}

	s.metrics.RecordResolution(string(ruledomain.FamilyCommission), "matched")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"matched":      true,
		"rate":         resolution.Rate,
		"applied_rule": resolution.AppliedRule,
	}})
}

func (s *Server) GetCommissionRuleHistory(c *gin.Context) {
	resp, err := s.ruleSvc.History(c.Request.Context(), ruledomain.FamilyCommission, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) recordAudit(c *gin.Context, action string, rule *ruledomain.Response) {
	if s.auditSvc == nil || rule == nil {
		return
	}
	targetID := rule.ID
	_ = s.auditSvc.Record(c.Request.Context(), action, strings.Split(action, ".")[0], &targetID, map[string]any{
		"rule_id": rule.ID,
		"family":  rule.Family,
		"name":    rule.Name,
		"rate":    rule.Rate,
		"version": rule.Version,
	})
}

package server

import (
	"net/http"
	"strings"
	"time"

	ruledomain "github.com/marketlane/backoffice/internal/rule/domain"
	"github.com/gin-gonic/gin"
)

type createTaxRuleRequest struct {
	Name          string     `json:"name"`
	CountryCode   string     `json:"country_code"`
	CategoryID    *string    `json:"category_id"`
	Rate          float64    `json:"rate"`
	Priority      int        `json:"priority"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
	Reason        *string    `json:"reason"`
}

type updateTaxRuleRequest struct {
	Name             *string    `json:"name,omitempty"`
	CountryCode      *string    `json:"country_code,omitempty"`
	CategoryID       *string    `json:"category_id,omitempty"`
	Rate             *float64   `json:"rate,omitempty"`
	Priority         *int       `json:"priority,omitempty"`
	EffectiveFrom    *time.Time `json:"effective_from,omitempty"`
	EffectiveTo      *time.Time `json:"effective_to,omitempty"`
	ClearEffectiveTo bool       `json:"clear_effective_to,omitempty"`
	Reason           *string    `json:"reason,omitempty"`
}

func (s *Server) CreateTaxRule(c *gin.Context) {
	var req createTaxRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	countryCode := strings.TrimSpace(req.CountryCode)
	resp, err := s.ruleSvc.Create(c.Request.Context(), ruledomain.CreateRequest{
		Family:        ruledomain.FamilyTax,
		Name:          req.Name,
		ScopeKey:      &countryCode,
		CategoryID:    req.CategoryID,
		Rate:          req.Rate,
		Priority:      req.Priority,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		Reason:        req.Reason,
	})
	s.metrics.RecordMutation(string(ruledomain.FamilyTax), "create", mutationOutcome(err))
	if err != nil {
		if isConflict(err) {
			s.metrics.RecordConflict(string(ruledomain.FamilyTax))
		}
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "tax_rule.create", resp)
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListTaxRules(c *gin.Context) {
	var query struct {
		CountryCode string `form:"country_code"`
		CategoryID  string `form:"category_id"`
		IsActive    string `form:"is_active"`
		SortBy      string `form:"sort_by"`
		OrderBy     string `form:"order_by"`
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
		Family:     ruledomain.FamilyTax,
		ScopeKey:   optionalString(query.CountryCode),
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

func (s *Server) GetTaxRule(c *gin.Context) {
	resp, err := s.ruleSvc.Get(c.Request.Context(), ruledomain.FamilyTax, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTaxRule(c *gin.Context) {
	var req updateTaxRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Update(c.Request.Context(), ruledomain.UpdateRequest{
		Family:           ruledomain.FamilyTax,
		ID:               c.Param("id"),
		Name:             req.Name,
		ScopeKey:         req.CountryCode,
		CategoryID:       req.CategoryID,
		Rate:             req.Rate,
		Priority:         req.Priority,
		EffectiveFrom:    req.EffectiveFrom,
		EffectiveTo:      req.EffectiveTo,
		ClearEffectiveTo: req.ClearEffectiveTo,
		Reason:           req.Reason,
	})
	s.metrics.RecordMutation(string(ruledomain.FamilyTax), "update", mutationOutcome(err))
	if err != nil {
		if isConflict(err) {
			s.metrics.RecordConflict(string(ruledomain.FamilyTax))
		}
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "tax_rule.update", resp)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTaxRule(c *gin.Context) {
	resp, err := s.ruleSvc.Delete(c.Request.Context(), ruledomain.DeleteRequest{
		Family: ruledomain.FamilyTax,
		ID:     c.Param("id"),
		Reason: optionalString(c.Query("reason")),
	})
	s.metrics.RecordMutation(string(ruledomain.FamilyTax), "delete", mutationOutcome(err))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "tax_rule.delete", resp)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveTaxRate(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "as_of must be RFC3339"))
		return
	}

	req := ruledomain.ResolveRequest{
		Family:     ruledomain.FamilyTax,
		ScopeKey:   optionalString(c.Query("country_code")),
		CategoryID: optionalString(c.Query("category_id")),
	}
	if asOf != nil {
		req.AsOf = *asOf
	}

	resolution, err := s.ruleSvc.Resolve(c.Request.Context(), req)
	if err != nil {
		s.metrics.RecordResolution(string(ruledomain.FamilyTax), "error")
		AbortWithError(c, err)
		return
	}
	if resolution == nil {
		s.metrics.RecordResolution(string(ruledomain.FamilyTax), "none")
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"matched": false}})
		return
	}

	s.metrics.RecordResolution(string(ruledomain.FamilyTax), "matched")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"matched":      true,
		"rate":         resolution.Rate,
		"applied_rule": resolution.AppliedRule,
	}})
}

func (s *Server) GetTaxRuleHistory(c *gin.Context) {
	resp, err := s.ruleSvc.History(c.Request.Context(), ruledomain.FamilyTax, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

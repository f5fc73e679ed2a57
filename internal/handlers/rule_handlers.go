package handlers

import (
	"net/http"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// RuleHandler serves categorization rule CRUD.
type RuleHandler struct {
	ruleService services.RuleService
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(rs services.RuleService) *RuleHandler {
	return &RuleHandler{ruleService: rs}
}

func (h *RuleHandler) ListRules(c *gin.Context) {
	rules, err := h.ruleService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "list rules")
		return
	}
	if rules == nil {
		rules = []models.CategorizationRule{}
	}
	c.JSON(http.StatusOK, rules)
}

func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req services.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	rule, err := h.ruleService.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "create rule")
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *RuleHandler) UpdateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch models.RulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}
	rule, err := h.ruleService.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondServiceError(c, err, "update rule")
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *RuleHandler) DeleteRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.ruleService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete rule")
		return
	}
	c.Status(http.StatusNoContent)
}

// TestRule previews which active rule, if any, categorizes a transaction.
func (h *RuleHandler) TestRule(c *gin.Context) {
	var req services.TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	resp, err := h.ruleService.Test(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "test rule")
		return
	}
	c.JSON(http.StatusOK, resp)
}

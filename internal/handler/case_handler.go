package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/lexdesk/internal/pkg/errcode"
	"github.com/xxxsen/lexdesk/internal/pkg/response"
	"github.com/xxxsen/lexdesk/internal/service"
)

type CaseHandler struct {
	cases *service.CaseService
}

func NewCaseHandler(cases *service.CaseService) *CaseHandler {
	return &CaseHandler{cases: cases}
}

type caseRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func (h *CaseHandler) List(c *gin.Context) {
	cases, err := h.cases.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cases)
}

func (h *CaseHandler) Create(c *gin.Context) {
	var req caseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Title == "" {
		response.Error(c, errcode.ErrInvalid, "title required")
		return
	}
	created, err := h.cases.Create(c.Request.Context(), getUserID(c), req.Title, req.Tags)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, created)
}

func (h *CaseHandler) Get(c *gin.Context) {
	item, err := h.cases.Get(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *CaseHandler) Update(c *gin.Context) {
	var req service.CaseUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	item, err := h.cases.Update(c.Request.Context(), c.Param("case_id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *CaseHandler) Delete(c *gin.Context) {
	if err := h.cases.Delete(c.Request.Context(), c.Param("case_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

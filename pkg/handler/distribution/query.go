package distribution

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/response"
	distribution_service "github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

// ListForPublisher 发布者查看全部有效记录
// @Summary      发布者文件列表
// @Tags         文件分发
// @Security     BearerAuth
// @Param        workplaceId  query  string  false  "只看指定了该组织的记录"
// @Param        category     query  string  false  "分类"
// @Param        page         query  int     false  "页码"
// @Param        pageSize     query  int     false  "每页数量"
// @Success      200  {object}  response.Response{data=model.DistributionListResponse}
// @Router       /distribution/files [get]
func (h *Handler) ListForPublisher(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var q model.PublisherListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Fail(c, http.StatusBadRequest, "请求参数错误")
		return
	}

	page, err := h.svc.ListForPublisher(c.Request.Context(), who, repository.PublisherListOptions{
		PageQuery:   repository.PageQuery{Page: q.Page, PageSize: q.PageSize},
		WorkplaceID: strings.TrimSpace(q.WorkplaceID),
		Category:    constant.Category(strings.TrimSpace(q.Category)),
	})
	if err != nil {
		fail(c, err, who, false)
		return
	}

	resp, err := distribution_service.ToListResponse(*page, who, nil)
	if err != nil {
		fail(c, err, who, false)
		return
	}
	response.Success(c, resp, "获取成功")
}

// ListForRecipient 组织成员的收件箱，附带全部未读数
// @Summary      收件箱
// @Tags         文件分发
// @Security     BearerAuth
// @Param        category    query  string  false  "分类"
// @Param        unreadOnly  query  bool    false  "只看未读"
// @Param        page        query  int     false  "页码"
// @Param        pageSize    query  int     false  "每页数量"
// @Success      200  {object}  response.Response{data=model.DistributionListResponse}
// @Router       /distribution/inbox [get]
func (h *Handler) ListForRecipient(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var q model.RecipientListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Fail(c, http.StatusBadRequest, "请求参数错误")
		return
	}

	page, err := h.svc.ListForRecipient(c.Request.Context(), who, distribution_service.RecipientListOptions{
		PageQuery:  repository.PageQuery{Page: q.Page, PageSize: q.PageSize},
		Category:   constant.Category(strings.TrimSpace(q.Category)),
		UnreadOnly: q.UnreadOnly,
	})
	if err != nil {
		fail(c, err, who, false)
		return
	}

	resp, err := distribution_service.ToListResponse(page.PageResult, who, &page.UnreadCount)
	if err != nil {
		fail(c, err, who, false)
		return
	}
	response.Success(c, resp, "获取成功")
}

// Get 获取单条记录
func (h *Handler) Get(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	record, err := h.svc.Get(c.Request.Context(), id, who)
	if err != nil {
		fail(c, err, who, true)
		return
	}
	dto, err := distribution_service.ToItemDTO(record, who)
	if err != nil {
		fail(c, err, who, true)
		return
	}
	response.Success(c, dto, "获取成功")
}

// Stats 发布者统计
// @Summary      文件分发统计
// @Tags         文件分发
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.DistributionStats}
// @Router       /distribution/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), who)
	if err != nil {
		fail(c, err, who, false)
		return
	}
	response.Success(c, stats, "获取成功")
}

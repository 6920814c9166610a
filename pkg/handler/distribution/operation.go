package distribution

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/response"
	distribution_service "github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

// Download 下载文件，组织成员下载即视为已读
// @Summary      下载文件
// @Tags         文件分发
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id  path  string  true  "记录公共ID"
// @Success      200  {file}    file  "文件内容"
// @Failure      404  {object}  response.Response  "文件不存在"
// @Failure      502  {object}  response.Response  "存储后端错误"
// @Router       /distribution/files/{id}/download [get]
func (h *Handler) Download(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	result, err := h.svc.Download(c.Request.Context(), id, who)
	if err != nil {
		fail(c, err, who, true)
		return
	}
	defer result.Reader.Close()

	c.Header("Content-Type", result.MimeType)
	c.Header("Content-Disposition", contentDisposition(result.Filename))
	if result.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(result.Size, 10))
	}
	c.Status(http.StatusOK)

	if _, err := result.Stream(c.Request.Context(), c.Writer); err != nil {
		// 响应头已发出，只能记录日志
		loggerFrom(c).Warn().Err(err).Uint("record_id", id).Msg("下载传输中断")
	}
}

// contentDisposition 非 ASCII 文件名按 RFC 2231 编码
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

// AcknowledgeRead 确认已读，重复确认无副作用
func (h *Handler) AcknowledgeRead(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	record, err := h.svc.AcknowledgeRead(c.Request.Context(), id, who)
	if err != nil {
		fail(c, err, who, true)
		return
	}
	dto, err := distribution_service.ToItemDTO(record, who)
	if err != nil {
		fail(c, err, who, true)
		return
	}
	response.Success(c, dto, "已确认")
}

// DeleteOne 删除单条记录
// @Summary      删除文件
// @Tags         文件分发
// @Security     BearerAuth
// @Param        id  path  string  true  "记录公共ID"
// @Success      200  {object}  response.Response{data=model.DistributionItemDTO}
// @Failure      404  {object}  response.Response  "文件不存在"
// @Router       /distribution/files/{id} [delete]
func (h *Handler) DeleteOne(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := recordID(c)
	if !ok {
		return
	}

	record, err := h.svc.DeleteOne(c.Request.Context(), id, who)
	if err != nil {
		fail(c, err, who, true)
		return
	}
	dto, err := distribution_service.ToItemDTO(record, who)
	if err != nil {
		fail(c, err, who, true)
		return
	}
	response.Success(c, dto, "删除成功")
}

// DeleteAll 删除全部有效记录
func (h *Handler) DeleteAll(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	result, err := h.svc.DeleteAll(c.Request.Context(), who)
	if err != nil {
		fail(c, err, who, false)
		return
	}
	response.Success(c, result, fmt.Sprintf("已删除 %d 条记录", result.DeletedCount))
}

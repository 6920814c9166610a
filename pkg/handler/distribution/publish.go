package distribution

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/response"
	distribution_service "github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

// multipart 边界与表单字段的额外余量
const formOverhead = 1 << 20

// Publish 发布文件
// @Summary      发布文件
// @Description  上传文件并分发给指定组织，不指定组织时对所有组织可见
// @Tags         文件分发
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Param        file          formData  file    true   "文件"
// @Param        workplaceIds  formData  string  false  "接收组织ID，可重复或逗号分隔"
// @Param        category      formData  string  false  "document/image/instruction/other"
// @Param        description   formData  string  false  "说明"
// @Param        expiresAt     formData  string  false  "过期时间 RFC3339"
// @Success      201  {object}  response.Response{data=model.DistributionItemDTO}
// @Failure      400  {object}  response.Response  "文件校验失败"
// @Failure      429  {object}  response.Response  "上传过于频繁"
// @Router       /distribution/files [post]
func (h *Handler) Publish(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+formOverhead)

	var form model.PublishForm
	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, constant.NewValidationError(constant.RuleMaxSize, "文件超过 %d 字节上限", h.maxUploadSize), who, false)
			return
		}
		response.Fail(c, http.StatusBadRequest, "请求参数错误")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, constant.NewValidationError(constant.RuleMaxSize, "文件超过 %d 字节上限", h.maxUploadSize), who, false)
			return
		}
		response.Fail(c, http.StatusBadRequest, "请选择要上传的文件")
		return
	}

	var expiresAt *time.Time
	if s := strings.TrimSpace(form.ExpiresAt); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, "expiresAt 格式错误，应为 RFC3339")
			return
		}
		expiresAt = &t
	}

	file, err := fh.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}
	defer file.Close()

	record, err := h.svc.Publish(c.Request.Context(), &distribution_service.PublishRequest{
		Content:      file,
		Filename:     fh.Filename,
		MimeType:     fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		WorkplaceIDs: splitIDs(form.WorkplaceIDs),
		Category:     constant.Category(strings.TrimSpace(form.Category)),
		Description:  form.Description,
		ExpiresAt:    expiresAt,
	}, who)
	if err != nil {
		fail(c, err, who, false)
		return
	}

	dto, err := distribution_service.ToItemDTO(record, who)
	if err != nil {
		fail(c, err, who, false)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, dto, "发布成功")
}

// splitIDs 同时支持重复字段与逗号分隔
func splitIDs(raw []string) []string {
	var ids []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, part)
			}
		}
	}
	return ids
}

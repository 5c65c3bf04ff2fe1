package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/internal/types"
	"github.com/clintagossett/artvault/pkg/log"
)

// CreateVersion 为制品追加一个新版本.
//
//	@Summary		追加版本
//	@Description	版本号在制品内单调递增（含已删除版本），永不复用.
//	@Tags			版本
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"制品 ID"
//	@Param			request	body		types.CreateVersionRequest	true	"版本内容"
//	@Success		200		{object}	types.CreateVersionResponse	"创建结果"
//	@Failure		400		{object}	map[string]string			"请求参数错误"
//	@Failure		403		{object}	map[string]string			"非制品拥有者"
//	@Router			/api/v1/artifacts/{id}/versions [post]
func CreateVersion(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	var req types.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewVersionService(c.Request.Context())

	res, err := svc.CreateVersion(c.Request.Context(), user, c.Param("id"), &req)
	if err != nil {
		l.Error().Err(err).Str("artifact", c.Param("id")).Msg("create version failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// ListVersions 列出制品的活跃版本，最新在前.
//
//	@Summary		列出版本
//	@Tags			版本
//	@Produce		json
//	@Param			id	path		string						true	"制品 ID"
//	@Success		200	{object}	types.ListVersionsResponse	"版本列表"
//	@Router			/api/v1/artifacts/{id}/versions [get]
func ListVersions(c *gin.Context) {
	svc := service.NewVersionService(c.Request.Context())

	res, err := svc.ListActiveVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// DeleteVersion 软删除一个版本.
//
//	@Summary		删除版本
//	@Description	软删除版本并级联其文件记录. 制品必须保留至少一个活跃版本，删除最后一个返回 409.
//	@Tags			版本
//	@Produce		json
//	@Param			id	path		string				true	"版本 ID"
//	@Success		200	{object}	map[string]string	"删除成功"
//	@Failure		404	{object}	map[string]string	"版本不存在"
//	@Failure		409	{object}	map[string]string	"仅存的活跃版本"
//	@Router			/api/v1/versions/{id} [delete]
func DeleteVersion(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	svc := service.NewVersionService(c.Request.Context())

	if err := svc.SoftDeleteVersion(c.Request.Context(), user, c.Param("id")); err != nil {
		l.Warn().Err(err).Str("version", c.Param("id")).Msg("delete version failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "version deleted"})
}

// UpdateVersionName 设置或清空版本备注名.
//
//	@Summary		修改版本名
//	@Description	version_name 为 null 时清空备注名，超过 100 字符返回 400.
//	@Tags			版本
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"版本 ID"
//	@Param			request	body		types.UpdateVersionNameRequest	true	"版本名"
//	@Success		200		{object}	map[string]string				"修改成功"
//	@Failure		400		{object}	map[string]string				"版本名过长"
//	@Router			/api/v1/versions/{id}/name [patch]
func UpdateVersionName(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	var req types.UpdateVersionNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewVersionService(c.Request.Context())

	if err := svc.UpdateVersionName(c.Request.Context(), user, c.Param("id"), req.VersionName); err != nil {
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "version name updated"})
}

// ListVersionFiles 列出版本内的活跃文件记录.
//
//	@Summary		列出版本文件
//	@Tags			版本
//	@Produce		json
//	@Param			id	path		string					true	"版本 ID"
//	@Success		200	{object}	types.ListFilesResponse	"文件列表"
//	@Router			/api/v1/versions/{id}/files [get]
func ListVersionFiles(c *gin.Context) {
	svc := service.NewFileService(c.Request.Context())

	recs, err := svc.ListFiles(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)

		return
	}

	files := make([]types.FileInfo, 0, len(recs))
	for _, r := range recs {
		files = append(files, types.FileInfo{
			ID:       r.ID,
			FilePath: r.FilePath,
			BlobRef:  r.BlobRef,
			MimeType: r.MimeType,
			FileSize: r.FileSize,
		})
	}

	c.JSON(http.StatusOK, types.ListFilesResponse{Files: files})
}

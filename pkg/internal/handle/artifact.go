package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/internal/types"
	"github.com/clintagossett/artvault/pkg/log"
)

// CreateArtifact 创建制品及其首个版本.
//
//	@Summary		创建制品
//	@Description	创建制品并生成 1 号版本，返回永久分享令牌. html/markdown 传原始文本，zip 传 base64 编码的压缩包.
//	@Tags			制品
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.CreateArtifactRequest		true	"制品内容"
//	@Success		200		{object}	types.CreateArtifactResponse	"创建结果"
//	@Failure		400		{object}	map[string]string				"请求参数错误"
//	@Failure		500		{object}	map[string]string				"服务器内部错误"
//	@Router			/api/v1/artifacts [post]
func CreateArtifact(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	var req types.CreateArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewArtifactService(c.Request.Context())

	res, err := svc.CreateArtifact(c.Request.Context(), user, &req)
	if err != nil {
		l.Error().Err(err).Msg("create artifact failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// ListArtifacts 列出当前用户的全部活跃制品.
//
//	@Summary		列出制品
//	@Tags			制品
//	@Produce		json
//	@Success		200	{object}	types.ListArtifactsResponse	"制品列表"
//	@Failure		400	{object}	map[string]string			"请求参数错误"
//	@Router			/api/v1/artifacts [get]
func ListArtifacts(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	svc := service.NewArtifactService(c.Request.Context())

	res, err := svc.ListArtifacts(c.Request.Context(), user)
	if err != nil {
		l.Error().Err(err).Msg("list artifacts failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// GetArtifact 获取单个制品的元数据.
//
//	@Summary		获取制品
//	@Tags			制品
//	@Produce		json
//	@Param			id	path		string						true	"制品 ID"
//	@Success		200	{object}	types.GetArtifactResponse	"制品信息"
//	@Failure		404	{object}	map[string]string			"制品不存在"
//	@Router			/api/v1/artifacts/{id} [get]
func GetArtifact(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	svc := service.NewArtifactService(c.Request.Context())

	res, err := svc.GetArtifact(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// UpdateArtifact 修改制品标题或描述.
//
//	@Summary		修改制品元数据
//	@Tags			制品
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"制品 ID"
//	@Param			request	body		types.UpdateArtifactRequest	true	"要修改的字段"
//	@Success		200		{object}	types.GetArtifactResponse	"修改后的制品"
//	@Failure		403		{object}	map[string]string			"非制品拥有者"
//	@Failure		404		{object}	map[string]string			"制品不存在"
//	@Router			/api/v1/artifacts/{id} [patch]
func UpdateArtifact(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	var req types.UpdateArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	svc := service.NewArtifactService(c.Request.Context())

	res, err := svc.UpdateArtifact(c.Request.Context(), user, c.Param("id"), &req)
	if err != nil {
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// DeleteArtifact 软删除制品，级联其全部版本与文件.
//
//	@Summary		删除制品
//	@Description	软删除：分享链接立即失效，版本与文件记录级联标记删除.
//	@Tags			制品
//	@Produce		json
//	@Param			id	path		string				true	"制品 ID"
//	@Success		200	{object}	map[string]string	"删除成功"
//	@Failure		403	{object}	map[string]string	"非制品拥有者"
//	@Failure		404	{object}	map[string]string	"制品不存在"
//	@Router			/api/v1/artifacts/{id} [delete]
func DeleteArtifact(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if user == "" || err != nil {
		l.Warn().Err(err).Msg("missing or invalid user")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user"})

		return
	}

	svc := service.NewArtifactService(c.Request.Context())

	if err := svc.SoftDeleteArtifact(c.Request.Context(), user, c.Param("id")); err != nil {
		l.Error().Err(err).Str("artifact", c.Param("id")).Msg("delete artifact failed")
		abortWithServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "artifact deleted"})
}

package handle

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/internal/service"
)

// 成功响应的缓存策略：版本内容不可变，允许任意中间层缓存一年.
const immutableCacheControl = "public, max-age=31536000, immutable"

// ServeArtifact 公开的分享解析入口，无需认证.
//
//	@Summary		按分享链接服务制品内容
//	@Description	路径形如 /artifact/{token}/v{N}/{filepath}. filepath 为空或为 index.html 时回落到版本入口文件.
//	@Tags			分享
//	@Produce		octet-stream
//	@Param			token		path		string	true	"分享令牌"
//	@Param			version		path		string	true	"版本选择器，形如 v3"
//	@Param			filepath	path		string	false	"版本内文件路径"
//	@Success		200			{string}	string	"文件内容"
//	@Failure		400			{object}	map[string]string	"版本选择器格式错误"
//	@Failure		404			{object}	map[string]string	"制品、版本或文件不存在"
//	@Failure		500			{object}	map[string]string	"存储读取失败"
//	@Router			/artifact/{token}/{version}/{filepath} [get]
func ServeArtifact(c *gin.Context) {
	token := c.Param("token")
	selector := c.Param("version")

	// gin 的 *filepath 带前导斜杠
	filePath := strings.TrimPrefix(c.Param("filepath"), "/")

	svc := service.NewResolveService(c.Request.Context())

	res, rerr := svc.Resolve(c.Request.Context(), token, selector, filePath)
	if rerr != nil {
		c.JSON(rerr.Status, gin.H{"error": rerr.Message})

		return
	}

	// 分享页面可被任意站点嵌入
	c.Header("Cache-Control", immutableCacheControl)
	c.Header("Access-Control-Allow-Origin", "*")
	c.Data(http.StatusOK, res.MimeType, res.Data)
}

// Package service 实现制品目录、版本账本、文件注册表、
// 分享解析与统一存储迁移的业务逻辑.
package service

import (
	crand "crypto/rand"
	"strings"
	"sync"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/oklog/ulid"

	nlog "github.com/clintagossett/artvault/pkg/log"
	"github.com/clintagossett/artvault/pkg/queue"
)

// eventProducer 事件头里的生产者标识.
const eventProducer = "artvault"

// 全局单例的 ULID 熵源，使用单调递增策略，确保同一毫秒内生成的 ULID 具有排序稳定性。
var (
	ulidEntropy = ulid.Monotonic(crand.Reader, 0)
	ulidMu      sync.Mutex // Monotonic 熵源非并发安全
)

// newULID 生成一个 ULID 字符串.
func newULID(t time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(t), ulidEntropy)

	return id.String()
}

// newArtifactID 生成制品 ID，形如 "art_01H...".
func newArtifactID(t time.Time) string { return "art_" + newULID(t) }

// newVersionID 生成版本 ID，形如 "ver_01H...".
func newVersionID(t time.Time) string { return "ver_" + newULID(t) }

// newFileID 生成文件记录 ID，形如 "fil_01H...".
func newFileID(t time.Time) string { return "fil_" + newULID(t) }

// NewShareToken 生成公开分享令牌，形如 "ar_01H...". 令牌在制品生命周期内不变.
func NewShareToken(t time.Time) string { return "ar_" + strings.ToLower(newULID(t)) }

// mustEventMessage 构造事件消息；编码失败只记录日志，返回空负载消息兜底.
func mustEventMessage[T any](topic string, payload T) *message.Message {
	msg, err := queue.NewWatermillMessage(topic, payload, queue.WithProducer(eventProducer))
	if err != nil {
		nlog.Logger().Error().Err(err).Str("topic", topic).Msg("encode event failed")

		return message.NewMessage(watermill.NewUUID(), nil)
	}

	return msg
}

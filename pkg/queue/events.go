package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishVersionCreated 发布 av.version.created 事件.
// 版本与其全部文件记录落库后调用，通知下游流程（统计、预热缓存等）.
func PublishVersionCreated(pub message.Publisher, payload VersionCreatedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicVersionCreated, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicVersionCreated, msg)
}

// ParseVersionCreated 将 Watermill 消息解析为强类型 Envelope.
func ParseVersionCreated(msg *message.Message) (Message[VersionCreatedPayload], error) {
	return ParseWatermillMessage[VersionCreatedPayload](msg)
}

// PublishArtifactDeleted 发布 av.artifact.deleted 事件，级联删除完成后调用.
func PublishArtifactDeleted(pub message.Publisher, payload ArtifactDeletedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicArtifactDeleted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicArtifactDeleted, msg)
}

// ParseArtifactDeleted 将 Watermill 消息解析为强类型 Envelope.
func ParseArtifactDeleted(msg *message.Message) (Message[ArtifactDeletedPayload], error) {
	return ParseWatermillMessage[ArtifactDeletedPayload](msg)
}

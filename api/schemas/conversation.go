package schemas

// -- Conversation Schemas --

// Role attributes a turn to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags the variant held by a ContentBlock.
type BlockType string

const (
	BlockText          BlockType = "text"
	BlockImage         BlockType = "image"
	BlockActionRequest BlockType = "tool_use"
	BlockActionResult  BlockType = "tool_result"
	BlockThinking      BlockType = "thinking"
)

// ImageMediaTypePNG is the only media type the screenshot pipeline produces.
const ImageMediaTypePNG = "image/png"

// RedactedImagePlaceholder replaces image payloads in redacted conversations.
const RedactedImagePlaceholder = "[image redacted]"

// ContentBlock is the tagged union carried by a Turn. Exactly one of the
// variant field groups is populated, selected by Type.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockImage: base64-encoded payload plus its media type.
	ImageData string `json:"image_data,omitempty"`
	MediaType string `json:"media_type,omitempty"`

	// BlockActionRequest: the model asked for a tool invocation.
	ID           string               `json:"id,omitempty"`
	ToolName     string               `json:"tool_name,omitempty"`
	Action       *ActionDescriptor    `json:"action,omitempty"`
	SafetyChecks []PendingSafetyCheck `json:"safety_checks,omitempty"`

	// BlockActionResult: outcome of a prior request, correlated by ToolUseID.
	ToolUseID string         `json:"tool_use_id,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`

	// BlockThinking: opaque reasoning payload, passed through unmodified.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// CacheMarker asks the model client to place a cache breakpoint after
	// this block. Managed exclusively by the history manager.
	CacheMarker bool `json:"cache_marker,omitempty"`
}

// Turn is one message in the conversation.
type Turn struct {
	Role   Role           `json:"role"`
	Blocks []ContentBlock `json:"blocks"`
}

// Conversation is the ordered turn history. Insertion order defines
// conversational causality and must survive every mutation pass.
type Conversation []Turn

// Clone returns a deep copy, so callers can mutate the result without
// aliasing the live loop state.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, turn := range c {
		blocks := make([]ContentBlock, len(turn.Blocks))
		copy(blocks, turn.Blocks)
		for j := range blocks {
			blocks[j].Content = append([]ContentBlock(nil), blocks[j].Content...)
		}
		out[i] = Turn{Role: turn.Role, Blocks: blocks}
	}
	return out
}

// Redacted returns a copy with every image payload replaced by a
// placeholder, safe to hand to log sinks.
func (c Conversation) Redacted() Conversation {
	out := c.Clone()
	for i := range out {
		for j := range out[i].Blocks {
			redactBlock(&out[i].Blocks[j])
		}
	}
	return out
}

func redactBlock(b *ContentBlock) {
	if b.Type == BlockImage && b.ImageData != "" {
		b.ImageData = RedactedImagePlaceholder
	}
	for k := range b.Content {
		redactBlock(&b.Content[k])
	}
}

// TextBlock is a convenience constructor for plain-text content.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock wraps a base64 PNG payload.
func ImageBlock(base64PNG string) ContentBlock {
	return ContentBlock{Type: BlockImage, ImageData: base64PNG, MediaType: ImageMediaTypePNG}
}

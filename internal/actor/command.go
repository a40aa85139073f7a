package actor

import "github.com/quadra-systems/hlquad/pkg/types"

// CommandKind discriminates the instructions a BotActor's command channel
// accepts, per SPEC_FULL §4.8.
type CommandKind int

const (
	CommandStart CommandKind = iota
	CommandStop
	CommandPause
	CommandUpdateConfig
	CommandShutdown
	CommandGetStatus
)

// Command is one instruction sent to a bot actor's command channel. Only
// the field relevant to Kind is populated.
type Command struct {
	Kind       CommandKind
	NewConfig  types.BotConfig
	ReplyState chan types.EnhancedBotStatus // used by CommandGetStatus
}

// commandBuffer is the bounded command-channel capacity (SPEC_FULL §5:
// "command channel bounded at 32 -- senders block when full").
const commandBuffer = 32

package types

// Message is implemented by every payload exchanged at the sync routing
// boundary. Framing, encryption and addressing live below this interface.
type Message interface {
	messageTag()
}

// QueryCommitBlockMessage asks a peer for one commit summary block by id.
type QueryCommitBlockMessage struct {
	BlockID BlockID `json:"block_id"`
	Ticket  Ticket  `json:"ticket"`
}

// CommitBlockMessage answers a QueryCommitBlockMessage. The ticket echoes
// the one carried by the query.
type CommitBlockMessage struct {
	Block  CommitSummaryBlock `json:"block"`
	Ticket Ticket             `json:"ticket"`
}

// QueryBlockMessage asks for one transaction block by id.
type QueryBlockMessage struct {
	BlockID BlockID `json:"block_id"`
	Ticket  Ticket  `json:"ticket"`
}

// BlockMessage delivers a transaction block. It may arrive via general
// routing from a peer other than the one queried.
type BlockMessage struct {
	Block  Block  `json:"block"`
	Ticket Ticket `json:"ticket"`
}

func (QueryCommitBlockMessage) messageTag() {}
func (CommitBlockMessage) messageTag()      {}
func (QueryBlockMessage) messageTag()       {}
func (BlockMessage) messageTag()            {}

// Envelope wraps a message with its sender and receiver for the transport
// layer. To is the zero PeerID for messages addressed to this node.
type Envelope struct {
	From    PeerID
	To      PeerID
	Message Message
}

package types

// TokenMapping is the durable state of one token: the block currently
// asserting ownership, the block it superseded, and the assertion time.
type TokenMapping struct {
	Block  BlockID `json:"block"`
	Parent BlockID `json:"parent"`
	Time   Time    `json:"time"`
}

package model

// Block identifies a chain head as reported by an upstream.
type Block struct {
	Number    uint64
	Timestamp uint64
}

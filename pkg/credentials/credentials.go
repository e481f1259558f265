// Package credentials implements the Credential Packer (C7): it extracts
// the delegation tokens of the current identity, strips the AM↔RM token,
// and serializes the rest into an immutable blob that every launch context
// receives a duplicated, independent-cursor view of.
package credentials

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// TokenKind identifies the service a delegation token is scoped to.
type TokenKind string

// Token is a single delegation token.
type Token struct {
	Kind       TokenKind
	Service    string
	Identifier []byte
	Password   []byte
}

// Bag holds the delegation tokens of the current identity. It is guarded by
// a mutex because tokens may be refreshed by an external collaborator (the
// current-user credentials handle) concurrently with a launch-context build
// reading it.
type Bag struct {
	mu     sync.RWMutex
	tokens []Token
}

// NewBag creates a token bag seeded with the given tokens.
func NewBag(tokens ...Token) *Bag {
	b := &Bag{}
	b.tokens = append(b.tokens, tokens...)
	return b
}

// Add appends a token to the bag.
func (b *Bag) Add(t Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, t)
}

// Blob is the immutable, packed result of Pack: a serialized token set with
// the AM↔RM token removed. Every launch context receives a Duplicate of it.
type Blob struct {
	data []byte
}

// Pack serializes every token in the bag except those whose Kind equals
// amRMTokenKind, so worker containers cannot impersonate the application
// master against the resource manager.
func Pack(bag *Bag, amRMTokenKind TokenKind) (*Blob, error) {
	bag.mu.RLock()
	filtered := make([]Token, 0, len(bag.tokens))
	for _, t := range bag.tokens {
		if t.Kind == amRMTokenKind {
			continue
		}
		filtered = append(filtered, t)
	}
	bag.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(filtered); err != nil {
		return nil, fmt.Errorf("pack credentials: %w", err)
	}

	return &Blob{data: buf.Bytes()}, nil
}

// Unpack deserializes a Blob back into its token set. Used by tests to
// verify the pack/unpack round-trip property.
func Unpack(blob *Blob) ([]Token, error) {
	var tokens []Token
	if err := gob.NewDecoder(bytes.NewReader(blob.data)).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("unpack credentials: %w", err)
	}
	return tokens, nil
}

// Duplicate returns a view over the same backing bytes with an independent
// read cursor (a fresh *bytes.Reader): shared backing bytes, independent
// cursor per consumer.
func (b *Blob) Duplicate() *bytes.Reader {
	return bytes.NewReader(b.data)
}

// Bytes returns the packed blob's backing bytes. Callers must not mutate
// the returned slice.
func (b *Blob) Bytes() []byte {
	return b.data
}

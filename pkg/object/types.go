package object

// Signature is an author or committer identity with an epoch-seconds
// timestamp. Name and Email keep the raw bytes recorded in the repository.
type Signature struct {
	Name  []byte
	Email []byte
	When  int64
}

// Commit is a commit object as read from the repository.
type Commit struct {
	Hash      Hash
	TreeHash  Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Message   []byte
}

// TreeEntry is one labeled edge from a tree to a child object.
type TreeEntry struct {
	Name []byte
	Kind Kind
	Hash Hash
}

// Tree holds a tree's entries in repository order.
type Tree struct {
	Hash    Hash
	Entries []TreeEntry
}

// Reference is a named pointer found in the repository. Target is only
// meaningful when Direct is true; symbolic references carry no target.
type Reference struct {
	Name   string
	Direct bool
	Target Hash
}

// Reader reads objects and references out of a source repository.
type Reader interface {
	ReadCommit(h Hash) (*Commit, error)
	ReadTree(h Hash) (*Tree, error)
	ReadBlob(h Hash) ([]byte, error)
	// PeelCommit resolves h to a commit, following annotated tags.
	PeelCommit(h Hash) (Hash, error)
	// References lists references whose names match glob. A '*' matches
	// any run of characters, including '/'.
	References(glob string) ([]Reference, error)
}

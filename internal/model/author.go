package model

// Author identifies who produced a message, request, or vote. Exactly one
// of UserID (a registered account) or Anonymous is set; Validate enforces
// this.
type Author struct {
	UserID    string     `json:"user_id,omitempty"`
	Anonymous *Anonymous `json:"anonymous,omitempty"`
}

// Anonymous describes an unauthenticated identity embedded directly in the
// records it produces. Anonymous identities are not server-verified, so
// they are compared by ID only for display purposes, never for trust.
type Anonymous struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      int    `json:"avatar"`
}

// Registered reports whether the author is a registered account.
func (a Author) Registered() bool {
	return a.UserID != ""
}

// Key returns a comparable identity key. Used for vote membership and for
// recognizing echoes of this client's own broadcasts.
func (a Author) Key() string {
	if a.UserID != "" {
		return "user:" + a.UserID
	}
	if a.Anonymous != nil {
		return "anon:" + a.Anonymous.ID
	}
	return ""
}

// DisplayName returns the name to render for this author.
func (a Author) DisplayName() string {
	if a.Anonymous != nil {
		return a.Anonymous.DisplayName
	}
	return a.UserID
}

// Validate checks the exactly-one-of invariant.
func (a Author) Validate() error {
	if a.UserID != "" && a.Anonymous != nil {
		return ErrAuthorAmbiguous
	}
	if a.UserID == "" && a.Anonymous == nil {
		return ErrAuthorMissing
	}
	return nil
}

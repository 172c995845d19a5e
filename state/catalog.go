package state

import "chatdesk/models"

// Catalog holds the known sessions and a reference to the current one.
// The current session is tracked by id, never by copy.
//
// The generation counts local patches (Prepend, MarkUploaded). A list fetched
// before a patch is stale and must not be applied with Replace.
type Catalog struct {
	sessions   []models.Session
	currentID  string
	generation uint64
}

// Replace swaps in a freshly listed catalog. Backend order is kept as-is.
// A current session missing from the list stays at the head so it remains
// resolvable.
func (c *Catalog) Replace(sessions []models.Session) {
	next := make([]models.Session, 0, len(sessions)+1)
	if cur, ok := c.Current(); ok && !containsSession(sessions, cur.ID) {
		next = append(next, cur)
	}
	c.sessions = append(next, sessions...)
}

// ReplaceIfFresh applies a list fetched at generation gen. It reports false
// and leaves the catalog untouched when a local patch happened since.
func (c *Catalog) ReplaceIfFresh(gen uint64, sessions []models.Session) bool {
	if gen != c.generation {
		return false
	}
	c.Replace(sessions)
	return true
}

// Generation is read before a list request is issued.
func (c *Catalog) Generation() uint64 {
	return c.generation
}

// Prepend adds a newly created session at the head of the list.
func (c *Catalog) Prepend(s models.Session) {
	c.sessions = append([]models.Session{s}, c.sessions...)
	c.generation++
}

// Select makes id the current session. The session must already be listed.
func (c *Catalog) Select(id string) error {
	if _, ok := c.find(id); !ok {
		return ErrSessionNotFound
	}
	c.currentID = id
	return nil
}

func (c *Catalog) CurrentID() string {
	return c.currentID
}

func (c *Catalog) Current() (models.Session, bool) {
	if c.currentID == "" {
		return models.Session{}, false
	}
	i, ok := c.find(c.currentID)
	if !ok {
		return models.Session{}, false
	}
	return c.sessions[i], true
}

// MarkUploaded optimistically flips a session to document mode until the
// next Replace brings the authoritative value.
func (c *Catalog) MarkUploaded(id string) bool {
	i, ok := c.find(id)
	if !ok {
		return false
	}
	c.sessions[i].Mode = models.ModeDocument
	c.generation++
	return true
}

func (c *Catalog) Sessions() []models.Session {
	return append([]models.Session(nil), c.sessions...)
}

func (c *Catalog) find(id string) (int, bool) {
	for i := range c.sessions {
		if c.sessions[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func containsSession(list []models.Session, id string) bool {
	for i := range list {
		if list[i].ID == id {
			return true
		}
	}
	return false
}

package repository

import (
	"encoding/json"

	"almaconnector/pkg/marc"
)

const (
	AccessOpen       = "open"
	AccessRestricted = "restricted"
	AccessEmbargoed  = "embargoed"
)

// SystemUserID owns records created without a named user.
const SystemUserID = 1

type Owner struct {
	User int `json:"user"`
}

type Access struct {
	OwnedBy  []Owner `json:"owned_by,omitempty"`
	Files    string  `json:"files,omitempty"`
	Metadata string  `json:"metadata,omitempty"`
}

// OpenAccess is the access block given to imported and updated records.
func OpenAccess(identity Identity) Access {
	return Access{
		OwnedBy:  []Owner{{User: identity.UserID}},
		Files:    AccessOpen,
		Metadata: AccessOpen,
	}
}

// Record is a repository record or draft as returned by the API. Raw keeps
// the full JSON document for search filters.
type Record struct {
	ID       string        `json:"id"`
	Metadata marc.Metadata `json:"metadata"`
	Access   Access        `json:"access"`
	Files    struct {
		Enabled bool `json:"enabled"`
	} `json:"files"`
	IsPublished bool           `json:"is_published"`
	Raw         map[string]any `json:"-"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.Raw); err != nil {
		return err
	}
	*r = Record(p)
	return nil
}

type SearchResult struct {
	Hits struct {
		Hits  []Record `json:"hits"`
		Total int      `json:"total"`
	} `json:"hits"`
}

type draftRequest struct {
	Metadata marc.Metadata `json:"metadata"`
	Access   *Access       `json:"access,omitempty"`
	Files    *filesBlock   `json:"files,omitempty"`
}

type filesBlock struct {
	Enabled bool `json:"enabled"`
}

type fileKey struct {
	Key string `json:"key"`
}

type user struct {
	ID    json.Number `json:"id"`
	Email string      `json:"email"`
}

type userSearchResult struct {
	Hits struct {
		Hits []user `json:"hits"`
	} `json:"hits"`
}

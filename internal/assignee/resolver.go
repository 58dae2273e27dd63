package assignee

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ownerRoles are tried in order when a campaign has no creator.
var ownerRoles = []string{"owner", "admin"}

// Resolver finds the default owner for new leads and tasks: the campaign's creator, else the
// organization owner.
type Resolver struct {
	db *sql.DB
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// DefaultAssignee returns "" with a nil error when nobody suitable exists.
func (r *Resolver) DefaultAssignee(ctx context.Context, orgID, campaignID string) (string, error) {
	if r == nil || r.db == nil {
		return "", nil
	}
	if campaignID = strings.TrimSpace(campaignID); campaignID != "" {
		var creator sql.NullString
		err := r.db.QueryRowContext(ctx, `
			SELECT created_by FROM campaigns WHERE id::text = $1 AND org_id = $2`,
			campaignID, orgID).Scan(&creator)
		switch {
		case err == nil && creator.Valid && creator.String != "":
			return creator.String, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return "", fmt.Errorf("assignee: campaign creator: %w", err)
		}
	}

	var owner string
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id FROM organization_members
		WHERE org_id = $1 AND role = ANY($2)
		ORDER BY array_position($2, role), created_at
		LIMIT 1`, orgID, pq.Array(ownerRoles)).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("assignee: org owner: %w", err)
	}
	return owner, nil
}

package postgres

// Relation describes how an embed name on a source table joins a target
// table: target.ForeignColumn = source.LocalColumn.
type Relation struct {
	Target        string
	LocalColumn   string
	ForeignColumn string
	// Many relations render as arrays.
	Many bool
}

// Relations maps source table -> embed name -> relation.
type Relations map[string]map[string]Relation

func (r Relations) lookup(table, name string) (Relation, bool) {
	rel, ok := r[table][name]
	return rel, ok
}

// DefaultRelations is the relationship graph of the bundled schema.
func DefaultRelations() Relations {
	return Relations{
		"posts": {
			"communities": {Target: "communities", LocalColumn: "community_id", ForeignColumn: "id"},
			"profiles":    {Target: "profiles", LocalColumn: "user_id", ForeignColumn: "id"},
			"likes":       {Target: "likes", LocalColumn: "id", ForeignColumn: "post_id", Many: true},
			"comments":    {Target: "comments", LocalColumn: "id", ForeignColumn: "post_id", Many: true},
		},
		"communities": {
			"subscriptions": {Target: "subscriptions", LocalColumn: "id", ForeignColumn: "community_id", Many: true},
			"topics":        {Target: "topics", LocalColumn: "topic_id", ForeignColumn: "id"},
			"profiles":      {Target: "profiles", LocalColumn: "owner_id", ForeignColumn: "id"},
		},
		"notifications": {
			"actor": {Target: "profiles", LocalColumn: "actor_id", ForeignColumn: "id"},
			"post":  {Target: "posts", LocalColumn: "post_id", ForeignColumn: "id"},
		},
		"saved_posts": {
			"posts": {Target: "posts", LocalColumn: "post_id", ForeignColumn: "id"},
		},
		"comments": {
			"profiles": {Target: "profiles", LocalColumn: "user_id", ForeignColumn: "id"},
		},
		"post_reports": {
			"profiles": {Target: "profiles", LocalColumn: "user_id", ForeignColumn: "id"},
			"posts":    {Target: "posts", LocalColumn: "post_id", ForeignColumn: "id"},
		},
		"community_moderators": {
			"profiles": {Target: "profiles", LocalColumn: "user_id", ForeignColumn: "id"},
		},
		"moderation_logs": {
			"profiles": {Target: "profiles", LocalColumn: "moderator_id", ForeignColumn: "id"},
		},
	}
}

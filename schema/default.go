package schema

// DefaultRegistry returns the registry for the universal personal-context
// graph: people, organizations, communication artifacts, tasks, events, and
// the resume vocabulary, plus the relationship types connecting them.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultNodeTypes, defaultRelationshipTypes, defaultRelationshipIndexes)
}

var defaultNodeTypes = []NodeTypeInfo{
	{
		Label: User,
		Properties: map[string]PropertyType{
			"id":             TypeString,
			"name":           TypeString,
			"email":          TypeString,
			"created_at":     TypeDatetime,
			"profile":        TypeJSON,
			"first_name":     TypeString,
			"last_name":      TypeString,
			"resume_summary": TypeString,
		},
	},
	{
		Label: Person,
		Properties: map[string]PropertyType{
			"id":                 TypeString,
			"name":               TypeString,
			"email":              TypeString,
			"phone":              TypeString,
			"title":              TypeString,
			"role":               TypeString,
			"company":            TypeString,
			"description":        TypeString,
			"organization_id":    TypeString,
			"first_contact_date": TypeDatetime,
			"last_contact_date":  TypeDatetime,
			"source":             TypeString,
			"embedding_id":       TypeString,
			"created_at":         TypeDatetime,
		},
	},
	{
		Label: Organization,
		Properties: map[string]PropertyType{
			"id":           TypeString,
			"name":         TypeString,
			"type":         TypeString,
			"domain":       TypeString,
			"website":      TypeString,
			"tax_id":       TypeString,
			"description":  TypeString,
			"location":     TypeString,
			"embedding_id": TypeString,
			"created_at":   TypeDatetime,
		},
	},
	{
		Label: Skill,
		Properties: map[string]PropertyType{
			"id":         TypeString,
			"name":       TypeString,
			"category":   TypeString,
			"created_at": TypeDatetime,
		},
	},
	{
		Label: Certification,
		Properties: map[string]PropertyType{
			"id":          TypeString,
			"name":        TypeString,
			"issuer":      TypeString,
			"issue_date":  TypeDatetime,
			"expiry_date": TypeDatetime,
			"created_at":  TypeDatetime,
		},
	},
	{
		Label: Language,
		Properties: map[string]PropertyType{
			"id":          TypeString,
			"name":        TypeString,
			"proficiency": TypeString,
			"created_at":  TypeDatetime,
		},
	},
	{
		Label: Message,
		Properties: map[string]PropertyType{
			"id":              TypeString,
			"content":         TypeString,
			"sender_id":       TypeString,
			"channel_id":      TypeString,
			"thread_id":       TypeString,
			"timestamp":       TypeDatetime,
			"read_status":     TypeString,
			"has_attachments": TypeBool,
			"sentiment":       TypeFloat,
			"intent":          TypeString,
			"is_actionable":   TypeBool,
			"reply_to_id":     TypeString,
			"embedding_id":    TypeString,
			"created_at":      TypeDatetime,
		},
	},
	{
		Label: Event,
		Properties: map[string]PropertyType{
			"id":           TypeString,
			"title":        TypeString,
			"description":  TypeString,
			"start_time":   TypeDatetime,
			"end_time":     TypeDatetime,
			"location":     TypeString,
			"embedding_id": TypeString,
			"created_at":   TypeDatetime,
		},
	},
	{
		Label: Location,
		Properties: map[string]PropertyType{
			"id":           TypeString,
			"name":         TypeString,
			"address":      TypeString,
			"postal_code":  TypeString,
			"coordinates":  TypeList,
			"type":         TypeString,
			"embedding_id": TypeString,
			"created_at":   TypeDatetime,
		},
	},
	{
		Label: Task,
		Properties: map[string]PropertyType{
			"id":               TypeString,
			"title":            TypeString,
			"status":           TypeString,
			"created_date":     TypeDatetime,
			"source_type":      TypeString,
			"description":      TypeString,
			"priority":         TypeString,
			"due_date":         TypeDatetime,
			"completion_date":  TypeDatetime,
			"horizon":          TypeString,
			"recurrence":       TypeString,
			"estimated_time":   TypeFloat,
			"tags":             TypeList,
			"confidence_score": TypeFloat,
			"assignee_id":      TypeString,
			"creator_id":       TypeString,
			"is_actionable":    TypeBool,
			"reminder_date":    TypeDatetime,
			"embedding_id":     TypeString,
			"created_at":       TypeDatetime,
		},
	},
	{
		Label: Channel,
		Properties: map[string]PropertyType{
			"id":                TypeString,
			"name":              TypeString,
			"type":              TypeString,
			"provider":          TypeString,
			"is_connected":      TypeBool,
			"connection_status": TypeString,
			"last_synced":       TypeDatetime,
			"credentials_id":    TypeString,
			"settings":          TypeJSON,
			"embedding_id":      TypeString,
			"created_at":        TypeDatetime,
		},
	},
	{
		Label: Thread,
		Properties: map[string]PropertyType{
			"id":                 TypeString,
			"title":              TypeString,
			"status":             TypeString,
			"created_date":       TypeDatetime,
			"last_updated":       TypeDatetime,
			"channel_id":         TypeString,
			"external_id":        TypeString,
			"participants_count": TypeInt,
			"message_count":      TypeInt,
			"embedding_id":       TypeString,
			"created_at":         TypeDatetime,
		},
	},
}

var defaultRelationshipTypes = []RelationshipTypeInfo{
	{
		Type:         UserKnows,
		ValidSources: []string{User},
		ValidTargets: []string{Person},
		Properties:   []string{"relationship_strength", "first_contact_date", "last_contact_date", "communication_frequency", "channels", "context_tags"},
	},
	{
		Type:         UserConnectedTo,
		ValidSources: []string{User},
		ValidTargets: []string{Organization},
		Properties:   []string{"connection_type", "start_date", "active", "context_tags"},
	},
	{
		Type:         UserCommunicatesVia,
		ValidSources: []string{User},
		ValidTargets: []string{Channel},
		Properties:   []string{"frequency", "last_used", "primary", "usage_pattern"},
	},
	{
		Type:         UserParticipatesIn,
		ValidSources: []string{User},
		ValidTargets: []string{Event},
		Properties:   []string{"role", "status", "importance", "recurrence"},
	},
	{
		Type:         UserVisits,
		ValidSources: []string{User},
		ValidTargets: []string{Location},
		Properties:   []string{"visit_frequency", "last_visit", "context_tags", "typical_duration"},
	},
	{
		Type:         UserManages,
		ValidSources: []string{User},
		ValidTargets: []string{Task},
		Properties:   []string{"assignment_date", "reminder_set", "priority_override"},
	},
	{
		Type:         ConnectedTo,
		ValidSources: []string{Person},
		ValidTargets: []string{Person},
		Properties:   []string{"relationship_context", "inferred_closeness", "communication_frequency"},
	},
	{
		Type:         AffiliatedWith,
		ValidSources: []string{Person},
		ValidTargets: []string{Organization},
		Properties:   []string{"affiliation_type", "inferred_role", "context_tags"},
	},
	{
		Type:         ParticipatesIn,
		ValidSources: []string{Person},
		ValidTargets: []string{Event},
		Properties:   []string{"role", "status", "invited_by"},
	},
	{
		Type:         LocatedAt,
		ValidSources: []string{Person, Organization, Event},
		ValidTargets: []string{Location},
		Properties:   []string{"relationship_type", "frequency", "context_tags"},
	},
	{
		Type:         Authored,
		ValidSources: []string{Person, User},
		ValidTargets: []string{Message},
		Properties:   []string{"timestamp", "channel_id", "message_type", "context_tags"},
	},
	{
		Type:         Received,
		ValidSources: []string{Person, User},
		ValidTargets: []string{Message},
		Properties:   []string{"timestamp", "read_status", "delivery_status"},
	},
	{
		Type:         MentionedIn,
		ValidSources: []string{Person, Organization, Location, Event},
		ValidTargets: []string{Message},
		Properties:   []string{"mention_context", "sentiment", "significance"},
	},
	{
		Type:         RelatedTo,
		ValidSources: []string{Task},
		ValidTargets: []string{Event, Message, Organization, Location},
		Properties:   []string{"relationship_type", "relevance_score"},
	},
	{
		Type:         SameAs,
		ValidSources: []string{Person, Organization},
		ValidTargets: []string{Person, Organization},
		Properties:   []string{"match_confidence", "evidence_sources", "channels"},
	},
	{
		Type:         ExtractedFrom,
		ValidSources: []string{Task},
		ValidTargets: []string{Message, Event},
		Properties:   []string{"extraction_method", "confidence_score", "extracted_text"},
	},
	{
		Type:         AssignedTo,
		ValidSources: []string{Task},
		ValidTargets: []string{Person},
		Properties:   []string{"assignment_date", "status", "assigned_by"},
	},
	{
		Type:         DependsOn,
		ValidSources: []string{Task},
		ValidTargets: []string{Task},
		Properties:   []string{"dependency_type", "blocking"},
	},
	{
		Type:         ModifiedBy,
		ValidSources: []string{Task},
		ValidTargets: []string{User},
		Properties:   []string{"modification_date", "modification_type", "previous_state"},
	},
	{
		Type:         HasSubtask,
		ValidSources: []string{Task},
		ValidTargets: []string{Task},
		Properties:   []string{"creation_date", "completion_dependency"},
	},
	{
		Type:         HasSkill,
		ValidSources: []string{User},
		ValidTargets: []string{Skill},
		Properties:   []string{"proficiency", "years_experience", "last_used"},
	},
	{
		Type:         HasCertification,
		ValidSources: []string{User},
		ValidTargets: []string{Certification},
		Properties:   []string{"issue_date", "expiry_date", "verification_url"},
	},
	{
		Type:         Speaks,
		ValidSources: []string{User},
		ValidTargets: []string{Language},
		Properties:   []string{"proficiency", "is_native"},
	},
	{
		Type:         WorkedAt,
		ValidSources: []string{User},
		ValidTargets: []string{Organization},
		Properties:   []string{"title", "start_date", "end_date", "location", "skills_used"},
	},
	{
		Type:         LearntAt,
		ValidSources: []string{User},
		ValidTargets: []string{Organization},
		Properties:   []string{"degree", "start_date", "end_date", "location", "description"},
	},
}

var defaultRelationshipIndexes = []RelationshipIndex{
	{Type: UserKnows, Property: "last_contact_date"},
	{Type: Authored, Property: "timestamp"},
	{Type: Received, Property: "timestamp"},
	{Type: UserParticipatesIn, Property: "status"},
	{Type: UserManages, Property: "assignment_date"},
	{Type: UserManages, Property: "reminder_set"},
	{Type: UserManages, Property: "priority_override"},
	{Type: ExtractedFrom, Property: "confidence_score"},
	{Type: AssignedTo, Property: "status"},
	{Type: DependsOn, Property: "dependency_type"},
	{Type: DependsOn, Property: "blocking"},
	{Type: RelatedTo, Property: "relevance_score"},
	{Type: ModifiedBy, Property: "modification_date"},
	{Type: HasSubtask, Property: "creation_date"},
	{Type: SameAs, Property: "match_confidence"},
}

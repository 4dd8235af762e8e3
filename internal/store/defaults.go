package store

// DefaultModes returns the dictation modes seeded on first start. Users can
// edit or delete them afterwards; the seed only runs against an empty table.
func DefaultModes() []Mode {
	return []Mode{
		{
			Name:        "Dictation",
			Description: "Plain dictation with filler removal and formatting.",
			Tone:        "formal",
			UseCleanup:  true, UseDictionary: true, UseSnippets: true,
			SortOrder: 0,
			IsDefault: true,
		},
		{
			Name:         "Email",
			Description:  "Polished prose for email clients.",
			SystemPrompt: "You are editing dictated text that will be sent as an email. Keep greetings and sign-offs intact.",
			Tone:         "formal",
			UseAIPolish:  true, UseCleanup: true, UseDictionary: true, UseSnippets: true,
			AutoSwitchApps: []string{"Mail", "Outlook", "Gmail", "Thunderbird"},
			SortOrder:      1,
		},
		{
			Name:        "Notes",
			Description: "Quick informal notes, light cleanup only.",
			Tone:        "casual",
			UseCleanup:  true, UseDictionary: true, UseSnippets: true,
			AutoSwitchApps: []string{"Notes", "Obsidian", "Notion", "Bear"},
			SortOrder:      2,
		},
		{
			Name:         "Code Comment",
			Description:  "Technical phrasing for editors and IDEs.",
			SystemPrompt: "You are editing dictated text that will become a code comment or commit message. Preserve identifiers exactly as spoken.",
			Tone:         "technical",
			UseCleanup:   true, UseDictionary: true,
			AutoSwitchApps: []string{"Code", "IntelliJ", "Xcode", "Terminal", "iTerm"},
			SortOrder:      3,
		},
		{
			Name:         "Assistant",
			Description:  "Prompts dictated for AI chat tools.",
			SystemPrompt: "You are editing dictated text that will be pasted into an AI assistant. Keep the intent and all constraints.",
			Tone:         "casual",
			UseAIPolish:  true, UseCleanup: true, UseDictionary: true, UseSnippets: true,
			AutoSwitchApps: []string{"ChatGPT", "Claude"},
			SortOrder:      4,
		},
	}
}

package main

// Server configuration constants
const (
	// MCP server name
	ServerName = "context-manager"
	// Server version following semantic versioning
	ServerVersion = "1.0.0"
)

// Workspace layout constants
const (
	// Directory under the workspace root holding all state
	StoreDirName = ".context-manager"
	// Context store file inside StoreDirName
	StoreFileName = "contexts.json"
	// Badger directory for revision history inside StoreDirName
	HistoryDirName = "history"
	// Optional config file name (without extension) inside StoreDirName
	ConfigName = "config"
)

// Environment
const (
	WorkspaceEnv = "WORKSPACE_PATH"
	EnvPrefix    = "CONTEXT_MANAGER"
)

// UI/CLI messages
const (
	PromptStr     = "context> "
	WelcomeMsg    = "=== Context Manager Interactive Mode ==="
	HelpMsg       = "Commands: add <type> [importance] <content> | list [n] | search <q> | update <id> <field>=<value>... | delete <id> | delete-many <id>... | info | history <id> | exit"
	UnknownCmdMsg = "Unknown command. Try: add, list, search, update, delete, delete-many, info, history, exit"
	NoContextsMsg = "No contexts stored."
)

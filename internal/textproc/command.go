package textproc

// CommandType classifies what the user wants done with a dictation beyond
// plain insertion.
type CommandType string

const (
	CommandNone      CommandType = "none"
	CommandFormat    CommandType = "format"
	CommandEdit      CommandType = "edit"
	CommandGenerate  CommandType = "generate"
	CommandTranslate CommandType = "translate"
	CommandSummarize CommandType = "summarize"
	CommandQuestion  CommandType = "question"
)

// DetectCommand classifies text into a [CommandType]. Detection heuristics
// are not implemented yet; everything is treated as plain dictation. The
// classification is threaded through persistence and the final payload so
// clients already see the field.
func DetectCommand(text string) CommandType {
	return CommandNone
}

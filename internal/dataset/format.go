package dataset

// codeBlock wraps content in a python fence.
func codeBlock(content string) string {
	return fence + "python\n" + content + "\n" + fence
}

func newRecord(system, user, assistant string) Record {
	return Record{Messages: []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
		{Role: RoleAssistant, Content: assistant},
	}}
}

// FormatCreate builds a create-game record. prompt is the game description
// from the CREATE header (or the filename with underscores as spaces).
func FormatCreate(script, prompt string) Record {
	return newRecord(createSystemPrompt, "Create a game: "+prompt, codeBlock(script))
}

// FormatRemix builds a remix record from the modified script, the
// unmodified base game and the REMIX request.
func FormatRemix(script, baseGame, prompt string) Record {
	user := "Here is the existing game code:\n\n" +
		"    " + fence + "python\n" +
		"    " + baseGame + "\n" +
		"    " + fence + "\n\n" +
		"    Please modify this game according to this request: " + prompt + "\n\n" +
		"    Provide the complete modified game code."
	return newRecord(remixSystemPrompt, user, codeBlock(script))
}

// FormatBugFix builds a bug-fix record. bug has its CREATE and ERROR
// headers stripped; trace is the joined ERROR lines.
func FormatBugFix(bug, fixed, trace string) Record {
	user := "Error:\n" + trace + "\n\n" +
		"Script with error:\n" +
		codeBlock(bug) + "\n\n" +
		"Please fix the bug and provide the corrected code."
	return newRecord(bugFixSystemPrompt, user, codeBlock(fixed))
}

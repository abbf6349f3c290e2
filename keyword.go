// Keywords recognized at the start of items and inside expressions.

package main

const (
	keywordAlias  = "alias"
	keywordElse   = "else"
	keywordExport = "export"
	keywordFalse  = "false"
	keywordIf     = "if"
	keywordImport = "import"
	keywordMod    = "mod"
	keywordSet    = "set"
	keywordTrue   = "true"
)

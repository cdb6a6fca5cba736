package engine

// InternalStepOutput holds a copy of the last step's outputs.
const InternalStepOutput = "__step_output"

// Checker registration names, as they appear in scenario expectations.
const (
	CheckerNameDefault       = "default"
	CheckerNameContains      = "contains"
	CheckerNameValueIn       = "value_in"
	CheckerNameSaveAs        = "save_as"
	CheckerNameErrorContains = "error_contains"
)

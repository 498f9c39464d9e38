package deploy

import _ "embed"

// stackTemplate is the default CloudFormation template for the Ollama
// stack. Embedded at compile time so the binary carries the template
// without requiring file-system access at runtime; --template overrides it.
//
//go:embed templates/stack.yaml
var stackTemplate string

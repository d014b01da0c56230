// Package sdk expõe os pontos de extensão públicos do agentchat.
package sdk

import "github.com/RafaelZelak/agentchat/internal/tools"

// RegisterScript disponibiliza uma função Go para tools do tipo "script"
// declaradas no tools.yml (campo function).
func RegisterScript(name string, fn func(args ...string) (string, error)) {
	tools.RegisterScript(name, fn)
}

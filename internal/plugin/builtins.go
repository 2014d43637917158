package plugin

// Builtins returns the factories for every compiled-in plugin.
func Builtins() []Factory {
	return []Factory{NewAnimefire, NewAllAnime}
}

// DebugBuiltins returns the single hard-wired plugin used by debug mode.
func DebugBuiltins() []Factory {
	return []Factory{NewAnimefire}
}

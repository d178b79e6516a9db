package router

import (
	"sort"
	"strings"
)

func (r *Router) helpText(args []string) string {
	r.mu.RLock()
	cmds := append([]Command(nil), r.cmds...)
	byName := r.byName
	r.mu.RUnlock()

	if len(args) > 0 {
		c, ok := byName[sanitizeTelegramCommand(args[0])]
		if !ok {
			return "unknown command: " + args[0]
		}
		lines := []string{"/" + c.Name}
		if c.Description != "" {
			lines = append(lines, c.Description)
		}
		if c.Usage != "" {
			lines = append(lines, "usage: "+c.Usage)
		}
		if len(c.Aliases) > 0 {
			lines = append(lines, "aliases: /"+strings.Join(c.Aliases, ", /"))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "owner only")
		}
		return strings.Join(lines, "\n")
	}

	// owner-only commands last, alphabetical within each group
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].Access != cmds[j].Access {
			return cmds[i].Access < cmds[j].Access
		}
		return cmds[i].Name < cmds[j].Name
	})
	lines := []string{"Commands:"}
	for _, c := range cmds {
		line := "/" + c.Name
		if c.Description != "" {
			line += " - " + c.Description
		}
		if c.Access == AccessOwnerOnly {
			line += " (owner)"
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "/help <command> for details")
	return strings.Join(lines, "\n")
}

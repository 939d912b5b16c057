package dom

// Rules returns the rules of sheet, or nil when sheet is nil or its rules
// cannot be read. Traversals use it to skip inaccessible sheets silently.
func Rules(sheet StyleSheet) []Rule {
	if sheet == nil {
		return nil
	}
	rules, err := sheet.CSSRules()
	if err != nil {
		return nil
	}
	return rules
}

// NestedRules is Rules for the children of a grouping rule.
func NestedRules(rule Rule) []Rule {
	if rule == nil {
		return nil
	}
	rules, err := rule.CSSRules()
	if err != nil {
		return nil
	}
	return rules
}

package mcpserver

// DialectURI is the resource URI of MarkdownDialect.
const DialectURI = "mindmark://markdown-dialect"

// MarkdownDialect describes the Markdown subset mindmark reads and writes,
// and the NodeTree JSON it exchanges with the mind-map renderer. Assistants
// should read it before creating or editing maps.
const MarkdownDialect = `# mindmark Map Format

A map is a UTF-8 Markdown file ending in ` + "`" + `.md` + "`" + `. Only headings, list items
and the plain text under them carry meaning; everything else is notes.

## Structure

` + "```" + `markdown
---
title: Q1 plan          # OPTIONAL, defaults to the first "# " heading
author: dana            # OPTIONAL, shown as the map author
tags: [work, planning]  # OPTIONAL, list or comma separated string
---

# Q1 plan
Why this plan exists. Lines under a node are its notes.

## Goals
- Ship the importer
  - Parser
  - Renderer
- Hire two engineers

## Risks
1. Scope creep
` + "```" + `

## Rules

1. **Headings** are ` + "`" + `#` + "`" + ` to ` + "`" + `######` + "`" + ` followed by a space. A heading belongs to the
   nearest preceding heading of a lower level.
2. **List items** start with ` + "`" + `-` + "`" + `, ` + "`" + `*` + "`" + `, ` + "`" + `+` + "`" + ` or ` + "`" + `1.` + "`" + ` after optional spaces.
   Each nesting level is indented by **two spaces**. A list item belongs to the
   nearest list item indented exactly two spaces less, otherwise to the
   enclosing heading.
3. **Notes** are any other non-blank lines. They attach to the node right
   above them. Text before the first heading or list item is dropped.
4. Writing a map normalises markers to ` + "`" + `-` + "`" + ` and ` + "`" + `1.` + "`" + `, and separates
   heading sections with blank lines.
5. Keep nesting shallow; items deeper than the configured maximum depth are
   attached at that depth.
6. **File paths** use forward slashes and end with ` + "`" + `.md` + "`" + `.

## NodeTree

The ` + "`" + `nodetree` + "`" + ` format is JSON:

` + "```" + `json
{
  "meta": {"name": "Q1 plan", "author": "dana", "version": "1.0"},
  "format": "node_tree",
  "data": {
    "id": "node_1", "topic": "Q1 plan", "parentid": null,
    "data": {"type": "heading", "level": 1, "fullPath": "Q1 plan", "siblingNodes": []},
    "children": []
  }
}
` + "```" + `

- ` + "`" + `format` + "`" + ` is ` + "`" + `node_tree` + "`" + ` (nested ` + "`" + `children` + "`" + `) or ` + "`" + `node_array` + "`" + ` (flat list linked by ` + "`" + `parentid` + "`" + `).
- ` + "`" + `data.type` + "`" + ` is ` + "`" + `heading` + "`" + ` or ` + "`" + `list` + "`" + `. When missing it is inferred from the
  node's level, then from its siblings, then from its parent.
- Node ids are assigned in document order on every read. Use ` + "`" + `node_context` + "`" + `
  with an id from a fresh ` + "`" + `read_map` + "`" + `.
`

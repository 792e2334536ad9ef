package model

// DependencyType classifies where an imported module lives relative to the
// analyzed tree.
type DependencyType string

const (
	DepLocalFile       DependencyType = "LOCAL_FILE"       // resolves to a file in the tree
	DepInternalModule  DependencyType = "INTERNAL_MODULE"  // in-tree module root or alias
	DepStandardLibrary DependencyType = "STANDARD_LIBRARY" // runtime-provided, no in-tree source
	DepExternalPackage DependencyType = "EXTERNAL_PACKAGE" // third-party package
)

// ImportStatement is a single import extracted from a source file.
type ImportStatement struct {
	ModuleSpecifier string         `json:"moduleSpecifier"`
	Raw             string         `json:"raw"`
	Line            int            `json:"line"`
	Type            DependencyType `json:"type"`
	ResolvedPath    string         `json:"resolvedPath,omitempty"`
	Confidence      float64        `json:"confidence"`
}

// ExportStatement is a single re-export extracted from a source file: an
// export-form line naming a module specifier. Plain value exports carry no
// specifier and are not recorded.
type ExportStatement struct {
	ModuleSpecifier string         `json:"moduleSpecifier"`
	Raw             string         `json:"raw"`
	Line            int            `json:"line"`
	Type            DependencyType `json:"type"`
	ResolvedPath    string         `json:"resolvedPath,omitempty"`
	Confidence      float64        `json:"confidence"`
}

// Dependency is a file's resolved dependency on a module specifier. One
// Dependency aggregates all imports of the same specifier from the same file.
type Dependency struct {
	ID              string         `json:"id"`
	SourcePath      string         `json:"sourcePath"`
	ModuleSpecifier string         `json:"moduleSpecifier"`
	Type            DependencyType `json:"type"`
	ResolvedPath    string         `json:"resolvedPath,omitempty"`
	Confidence      float64        `json:"confidence"`
	ContentHash     string         `json:"contentHash,omitempty"`
}

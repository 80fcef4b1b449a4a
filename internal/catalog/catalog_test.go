package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTree builds {A (children: [A/1, A/2]), B}.
func sampleTree() *Node {
	return &Node{
		Children: []*Node{
			{
				Path:  "A",
				Title: "Section A",
				Children: []*Node{
					{Path: "A/1", Title: "First"},
					{Path: "A/2", Title: "Second"},
				},
			},
			{Path: "B", Title: "Section B"},
		},
	}
}

func TestLeaves(t *testing.T) {
	tests := []struct {
		name string
		root *Node
		want []string
	}{
		{
			name: "parents skipped children included",
			root: sampleTree(),
			want: []string{"A/1", "A/2", "B"},
		},
		{
			name: "deep nesting",
			root: &Node{
				Children: []*Node{
					{Path: "a", Title: "a", Children: []*Node{
						{Path: "a/b", Title: "b", Children: []*Node{
							{Path: "a/b/c", Title: "c"},
						}},
					}},
				},
			},
			want: []string{"a/b/c"},
		},
		{
			name: "empty tree",
			root: &Node{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, n := range Leaves(tt.root) {
				got = append(got, n.Path)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeavesNeverContainsParents(t *testing.T) {
	root := sampleTree()
	for _, leaf := range Leaves(root) {
		assert.Empty(t, leaf.Children, "leaf %s has children", leaf.Path)
	}
}

func TestFlattenIncludesParents(t *testing.T) {
	var paths []string
	for _, n := range Flatten(sampleTree()) {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"A", "A/1", "A/2", "B"}, paths)
}

func TestFindByPath(t *testing.T) {
	root := sampleTree()

	n := FindByPath(root, "A/2")
	require.NotNil(t, n)
	assert.Equal(t, "Second", n.Title)

	assert.Nil(t, FindByPath(root, "missing"))
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, Validate(sampleTree()))
	})

	t.Run("duplicate path", func(t *testing.T) {
		root := &Node{Children: []*Node{
			{Path: "x", Title: "one"},
			{Path: "x", Title: "two"},
		}}
		assert.ErrorIs(t, Validate(root), ErrDuplicatePath)
	})

	t.Run("missing title", func(t *testing.T) {
		root := &Node{Children: []*Node{{Path: "x"}}}
		assert.ErrorIs(t, Validate(root), ErrInvalidNode)
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, Validate(&Node{}), ErrEmptyCatalog)
	})
}

func TestParse(t *testing.T) {
	t.Run("array form", func(t *testing.T) {
		root, err := Parse([]byte(`[{"path":"A","title":"A","children":[{"path":"A/1","title":"One"}]}]`))
		require.NoError(t, err)
		assert.Len(t, Leaves(root), 1)
	})

	t.Run("object form wraps root", func(t *testing.T) {
		root, err := Parse([]byte(`{"path":"top","title":"Top"}`))
		require.NoError(t, err)
		assert.Empty(t, root.Path)
		require.NotNil(t, FindByPath(root, "top"))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Parse([]byte(`{"path":`))
		assert.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Parse([]byte("  "))
		assert.ErrorIs(t, err, ErrEmptyCatalog)
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(sampleTree())
	require.NoError(t, err)

	root, err := Parse(data)
	require.NoError(t, err)

	var paths []string
	for _, n := range Flatten(root) {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"A", "A/1", "A/2", "B"}, paths)
}

func TestClone(t *testing.T) {
	root := sampleTree()
	clone := root.Clone()

	clone.Children[0].Children[0].Title = "changed"
	assert.Equal(t, "First", root.Children[0].Children[0].Title)
}

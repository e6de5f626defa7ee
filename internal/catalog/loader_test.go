package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
roles:
  - code: admin
    name: Administrator
    system: true
  - code: clerk
    name: Clerk

users:
  - username: ivan
    email: ivan@example.com
    roles: [admin]

applications:
  - code: erp
    name: ERP
    order: 1
    modules:
      - code: warehouse
        name: Warehouse
        entities:
          - code: material
            name: Material
            master: true
            attributes:
              - code: name
                name: Name
                type: VARCHAR
                max_length: 100
                required: true
                unique: true
              - code: qty
                name: Quantity
                type: INT
                rules: "min=0"
            states:
              - code: draft
                name: Draft
                initial: true
            forms:
              - code: main
                name: Main
                type: CREATE
                default: true
                fields:
                  - attribute: name
                    label: Name
                    widget: SELECT
                    dropdown_entity: warehouse.material
                    dropdown_attribute: name
                    unique_only: true
                  - attribute: qty
                    widget: NUMBER
            permissions:
              - role: admin
                crud: crud
              - role: clerk
                crud: r
`

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "erp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	require.Len(t, c.Roles, 2)
	require.True(t, c.Roles[0].System)
	require.Len(t, c.Users, 1)
	require.Equal(t, []string{"admin"}, c.Users[0].Roles)

	require.Len(t, c.Applications, 1)
	app := c.Applications[0]
	require.Len(t, app.Modules, 1)
	ent := app.Modules[0].Entities[0]
	require.Equal(t, "material", ent.Code)
	require.True(t, ent.Master)
	require.Len(t, ent.Attributes, 2)
	require.True(t, ent.Attributes[0].Required)
	require.Equal(t, "min=0", ent.Attributes[1].Rules)
	require.Len(t, ent.Forms, 1)
	require.Len(t, ent.Forms[0].Fields, 2)
	require.Equal(t, "warehouse.material", ent.Forms[0].Fields[0].DropdownEntity)
	require.True(t, ent.Forms[0].Fields[0].UniqueOnly)
	require.Len(t, ent.Permissions, 2)
	require.Equal(t, "crud", ent.Permissions[0].CRUD)
}

func TestLoadDirMergesAndSkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("roles:\n  - code: admin\n    name: Admin\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("roles:\n  - code: clerk\n    name: Clerk\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not yaml"), 0o644))

	c, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, c.Roles, 2)
}

func TestLoadFileBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles: [unclosed"), 0o644))
	_, err := LoadFile(path)
	require.Error(t, err)
}

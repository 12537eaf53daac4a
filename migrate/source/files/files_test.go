package files_test

import (
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/invito-app/invito/migrate/migration"
	"github.com/invito-app/invito/migrate/source"
	"github.com/invito-app/invito/migrate/source/files"
)

var getAvailableMigrationsTestTable = []struct { // nolint:gochecknoglobals
	name                    string
	expectErrorWhenCreating bool
	expectErrorWhenCalling  bool
	directory               string
	fs                      fstest.MapFS
	expectedMigrations      []migration.Description
}{
	// -- success tests ------
	/* s0 */ {
		name:      "test s0: should correctly list all migrations (1)",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/20230712094512_add_referral_count.down.sql": {},
			"migrations/20230712094512_add_referral_count.up.sql":   {},
		},
		expectedMigrations: []migration.Description{
			{Migration: migration.Migration{Version: 20230712094512, Name: "add_referral_count"}, CanUndo: true},
		},
	},
	/* s1 */ {
		name:      "test s1: should correctly list all migrations (2)",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/20230710211237_create_users_table.up.sql":   {},
			"migrations/20230712094512_add_referral_count.down.sql": {},
			"migrations/20230712094512_add_referral_count.up.sql":   {},
		},
		expectedMigrations: []migration.Description{
			{Migration: migration.Migration{Version: 20230710211237, Name: "create_users_table"}, CanUndo: false},
			{Migration: migration.Migration{Version: 20230712094512, Name: "add_referral_count"}, CanUndo: true},
		},
	},
	/* s2 */ {
		name:      "test s2: should correctly list migrations in an non-standard directory",
		directory: "tmp/.Xs223xxSCa",
		fs: fstest.MapFS{
			"tmp/.Xs223xxSCa": {
				Mode: fs.ModeDir,
			},
			"tmp/.Xs223xxSCa/20230710211237_create_users_table.up.sql":   {},
			"tmp/.Xs223xxSCa/20230712094512_add_referral_count.down.sql": {},
			"tmp/.Xs223xxSCa/20230712094512_add_referral_count.up.sql":   {},
		},
		expectedMigrations: []migration.Description{
			{Migration: migration.Migration{Version: 20230710211237, Name: "create_users_table"}, CanUndo: false},
			{Migration: migration.Migration{Version: 20230712094512, Name: "add_referral_count"}, CanUndo: true},
		},
	},
	/* s3 */ {
		name:      "test s3: should ignore files that are not sql scripts",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/README.md":                                {},
			"migrations/.gitkeep":                                 {},
			"migrations/20230712094512_add_referral_count.up.sql": {},
		},
		expectedMigrations: []migration.Description{
			{Migration: migration.Migration{Version: 20230712094512, Name: "add_referral_count"}, CanUndo: false},
		},
	},
	/* s4 */ {
		name:      "test s4: should not care about other directories",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"20230710211237_create_users_table.up.sql":              {},
			"migrations/subdirectory/20230710211237_init.up.sql":    {},
			"sibling/20230710211237_init.up.sql":                    {},
			"migrations/20230712094512_add_referral_count.down.sql": {},
			"migrations/20230712094512_add_referral_count.up.sql":   {},
		},
		expectedMigrations: []migration.Description{
			{Migration: migration.Migration{Version: 20230712094512, Name: "add_referral_count"}, CanUndo: true},
		},
	},
	/* s5 */ {
		name:      "test s5: should skip directories with matching name",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/20230710211237_init.up.sql": {
				Mode: fs.ModeDir,
			},
			"migrations/20230712094512_add_referral_count.down.sql": {},
			"migrations/20230712094512_add_referral_count.up.sql":   {},
		},
		expectedMigrations: []migration.Description{
			{Migration: migration.Migration{Version: 20230712094512, Name: "add_referral_count"}, CanUndo: true},
		},
	},

	// -- error tests --------
	/* e0 */ {
		name:      "test e0: should fail when directory does not exist",
		directory: "schema",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/20230710211237_create_users_table.up.sql": {},
		},
		expectErrorWhenCreating: true,
	},
	/* e1 */ {
		name:      "test e1: should fail on duplicate migration version",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/20230712094512_add_referral_count.down.sql":   {},
			"migrations/20230712094512_add_referral_count.up.sql":     {},
			"migrations/20230712094512_add_referral_count_2.down.sql": {},
		},
		expectErrorWhenCalling: true,
	},
	/* e2 */ {
		name:      "test e2: should fail when directory is a file",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {},
		},
		expectErrorWhenCreating: true,
	},
	/* e3 */ {
		name:      "test e3: should fail on sql file without an up or down suffix",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/20230712094512_add_referral_count.sql": {},
		},
		expectErrorWhenCalling: true,
	},
	/* e4 */ {
		name:      "test e4: should fail on sql file without a numeric version",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/_add_referral_count.up.sql": {},
		},
		expectErrorWhenCalling: true,
	},
	/* e5 */ {
		name:      "test e5: should fail on sql file without a name",
		directory: "migrations",
		fs: fstest.MapFS{
			"migrations": {
				Mode: fs.ModeDir,
			},
			"migrations/20230712094512.up.sql":  {},
			"migrations/20230712094513_.up.sql": {},
		},
		expectErrorWhenCalling: true,
	},
}

func TestGetAvailableMigrations(t *testing.T) {
	t.Parallel()
	t.Logf("Should correctly test fetching of available migrations from a directory.")

	for _, test := range getAvailableMigrationsTestTable {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			src, err := files.NewFilesSource(test.fs, test.directory)

			if test.expectErrorWhenCreating {
				assert.Error(t, err)
				return
			} else if !assert.NoError(t, err) {
				return
			}

			migrations, err := src.GetAvailableMigrations()

			if test.expectErrorWhenCalling {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)

			if assert.NotNil(t, migrations) {
				assert.Equal(t, test.expectedMigrations, *migrations)
			}
		})
	}
}

func TestReadMigration(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations": {
			Mode: fs.ModeDir,
		},
		"migrations/20230710211237_create_users_table.up.sql": {
			Data: []byte("CREATE TABLE IF NOT EXISTS users (id CHAR(36) PRIMARY KEY);"),
		},
		"migrations/20230710211237_create_users_table.down.sql": {
			Data: []byte("DROP TABLE users;"),
		},
	}

	src, err := files.NewFilesSource(fsys, "migrations")
	if !assert.NoError(t, err) {
		return
	}

	mig := migration.Migration{Version: 20230710211237, Name: "create_users_table"}

	reader, err := src.ReadMigration(mig, migration.Up)
	assert.NoError(t, err)
	script, err := io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS users (id CHAR(36) PRIMARY KEY);", string(script))

	reader, err = src.ReadMigration(mig, migration.Down)
	assert.NoError(t, err)
	script, err = io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Equal(t, "DROP TABLE users;", string(script))

	_, err = src.ReadMigration(migration.Migration{Version: 20230712094512, Name: "add_referral_count"}, migration.Up)
	assert.ErrorIs(t, err, source.ErrMigrationNotFound)
}

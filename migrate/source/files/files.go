// Package files implements a migration source backed by a directory of
// SQL scripts named "<version>_<name>.up.sql" / "<version>_<name>.down.sql".
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/invito-app/invito/migrate/migration"
	"github.com/invito-app/invito/migrate/source"
)

type filesSource struct {
	fsys          fs.FS
	migrationsDir string
}

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

var (
	ErrMigrationsDirectoryIsNotADirectory = errors.New("migrationsDirectory is not a directory")
)

func NewFilesSource(fsys fs.FS, migrationsDirectory string) (source.Source, error) {
	stat, err := fs.Stat(fsys, migrationsDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to stat migrations directory: %w", err)
	}

	if !stat.IsDir() {
		return nil, ErrMigrationsDirectoryIsNotADirectory
	}

	return &filesSource{
		fsys:          fsys,
		migrationsDir: migrationsDirectory,
	}, nil
}

func (src *filesSource) GetAvailableMigrations() (*[]migration.Description, error) {
	dirEntries, err := fs.ReadDir(src.fsys, src.migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read contents of migrations directory: %w", err)
	}

	migrations := make(versionMap)
	for _, entry := range dirEntries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}

		fileName := entry.Name()
		if !strings.HasSuffix(fileName, ".sql") {
			continue
		}

		mig, direction, err := parseMigrationFileName(fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse directory entries: %w", err)
		}

		if err = migrations.updateDescription(mig, direction); err != nil {
			return nil, fmt.Errorf("failed to parse directory entries: %w", err)
		}
	}

	keys := getSortedVersions(migrations)
	result := buildMigrationsSlice(keys, migrations)

	return &result, nil
}

func (src *filesSource) ReadMigration(mig migration.Migration, direction migration.Direction) (io.Reader, error) {
	suffix := upSuffix
	if direction == migration.Down {
		suffix = downSuffix
	}

	fileName := fmt.Sprintf("%d_%s%s", mig.Version, mig.Name, suffix)

	file, err := src.fsys.Open(path.Join(src.migrationsDir, fileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: version %d (%s)", source.ErrMigrationNotFound, mig.Version, direction)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open migration script %s: %w", fileName, err)
	}

	return file, nil
}

// ---

func getSortedVersions(migrations versionMap) []uint64 {
	keys := make([]uint64, 0, len(migrations))

	for k := range migrations {
		keys = append(keys, uint64(k))
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

func buildMigrationsSlice(keys []uint64, migrations versionMap) []migration.Description {
	result := make([]migration.Description, len(keys))
	for i, k := range keys {
		result[i] = migrations[migration.Version(k)]
	}
	return result
}

type versionMap map[migration.Version]migration.Description

func (m *versionMap) updateDescription(mig migration.Migration, direction migration.Direction) error {
	existing, exists := (*m)[mig.Version]

	switch {
	case !exists:
		(*m)[mig.Version] = migration.Description{
			Migration: mig,
			CanUndo:   direction == migration.Down,
		}

	case existing.Name != mig.Name:
		return fmt.Errorf(
			"%w: migration %d already exists with name \"%s\" (new name \"%s\" is encountered)",
			source.ErrMigrationDuplicated,
			mig.Version,
			existing.Name,
			mig.Name,
		)

	case direction == migration.Down:
		existing.CanUndo = true
		(*m)[mig.Version] = existing
	}

	return nil
}

func parseMigrationFileName(fileName string) (migration.Migration, migration.Direction, error) {
	var direction migration.Direction
	var stem string

	switch {
	case strings.HasSuffix(fileName, upSuffix):
		direction = migration.Up
		stem = strings.TrimSuffix(fileName, upSuffix)
	case strings.HasSuffix(fileName, downSuffix):
		direction = migration.Down
		stem = strings.TrimSuffix(fileName, downSuffix)
	default:
		return migration.Migration{}, 0, fmt.Errorf(
			"migration file name must end with %s or %s: %s", upSuffix, downSuffix, fileName)
	}

	asRunes := []rune(stem)

	versionLength := 0
	for _, c := range asRunes {
		if !unicode.IsDigit(c) {
			break
		}
		versionLength++
	}

	if versionLength == 0 {
		return migration.Migration{}, 0, fmt.Errorf(
			"migration file name does not start with a numeric version: %s", fileName)
	}

	versionAsInt, err := strconv.ParseUint(string(asRunes[:versionLength]), 10, migration.VersionBits)
	if err != nil {
		return migration.Migration{}, 0, fmt.Errorf(
			"migration file name does not contain a valid version: %s", fileName)
	}

	nameAsRunes := asRunes[versionLength:]
	if len(nameAsRunes) < 2 || nameAsRunes[0] != '_' {
		return migration.Migration{}, 0, fmt.Errorf(
			"migration file name is missing an underscore and a name after version: %s", fileName)
	}

	return migration.Migration{
		Version: migration.Version(versionAsInt),
		Name:    string(nameAsRunes[1:]),
	}, direction, nil
}

package database

import (
	"os"
	"path/filepath"
	"testing"

	"cotracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	tmpFile := filepath.Join(t.TempDir(), "cotracker_test.db")

	db, err := New(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, db)

	return db
}

func cleanupTestDB(t *testing.T, db *DB) {
	if db != nil {
		err := db.Close()
		assert.NoError(t, err)
	}
}

func seedAirstrips(t *testing.T, db *DB, airstrips ...*models.Airstrip) {
	for _, a := range airstrips {
		require.NoError(t, db.Airstrips().Create(a))
	}
}

func TestNew(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	assert.NotNil(t, db)
}

func TestNew_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Airstrips().Create(&models.Airstrip{Ident: "WABB", Name: "Biak"}))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	a, err := db.Airstrips().GetByIdent("WABB")
	require.NoError(t, err)
	assert.Equal(t, "Biak", a.Name)
}

func TestPilots_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	repo := db.Pilots()
	p := &models.Pilot{Username: "jdoe", FirstName: "Jane", LastName: "Doe", IsPilot: true}
	require.NoError(t, repo.Create(p))
	assert.NotZero(t, p.ID)

	got, err := repo.GetByUsername("jdoe")
	require.NoError(t, err)
	assert.Equal(t, *p, *got)

	_, err = repo.GetByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPilots_ListPilotsExcludesNonPilots(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	repo := db.Pilots()
	require.NoError(t, repo.Create(&models.Pilot{Username: "pilot", IsPilot: true}))
	require.NoError(t, repo.Create(&models.Pilot{Username: "admin", IsSuperuser: true}))

	pilots, err := repo.ListPilots()
	require.NoError(t, err)
	require.Len(t, pilots, 1)
	assert.Equal(t, "pilot", pilots[0].Username)

	all, err := repo.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAirstrips_AttachDetach(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	base := &models.Airstrip{Ident: "KXYZ", Name: "Base", IsBase: true}
	a1 := &models.Airstrip{Ident: "A1", Name: "Alpha"}
	a2 := &models.Airstrip{Ident: "A2", Name: "Bravo"}
	seedAirstrips(t, db, base, a1, a2)

	repo := db.Airstrips()
	require.NoError(t, repo.Attach(a1.ID, base.ID))
	// Attaching twice has no additional effect
	require.NoError(t, repo.Attach(a1.ID, base.ID))

	attached, err := repo.Attached(base.ID)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, "A1", attached[0].Ident)

	unattached, err := repo.Unattached(base.ID)
	require.NoError(t, err)
	require.Len(t, unattached, 1)
	assert.Equal(t, "A2", unattached[0].Ident, "the base itself is never listed as unattached")

	require.NoError(t, repo.Detach(a1.ID, base.ID))
	require.NoError(t, repo.Detach(a1.ID, base.ID))

	attached, err = repo.Attached(base.ID)
	require.NoError(t, err)
	assert.Empty(t, attached)
}

func TestAirstrips_SelfAttachmentRejectedByStorage(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	base := &models.Airstrip{Ident: "KXYZ", Name: "Base", IsBase: true}
	seedAirstrips(t, db, base)

	assert.Error(t, db.Airstrips().Attach(base.ID, base.ID))
}

func TestAirstrips_BaseSummaries(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	base := &models.Airstrip{Ident: "KXYZ", Name: "Base", IsBase: true}
	a1 := &models.Airstrip{Ident: "A1", Name: "Alpha"}
	a2 := &models.Airstrip{Ident: "A2", Name: "Bravo"}
	a3 := &models.Airstrip{Ident: "A3", Name: "Charlie"}
	seedAirstrips(t, db, base, a1, a2, a3)
	require.NoError(t, db.Airstrips().Attach(a1.ID, base.ID))

	summaries, err := db.Airstrips().BaseSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "KXYZ", summaries[0].Base.Ident)
	assert.Equal(t, 1, summaries[0].Attached)
	assert.Equal(t, 2, summaries[0].Unattached)
}

func TestAirstrips_ListByIdentsIgnoresUnknown(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	seedAirstrips(t, db, &models.Airstrip{Ident: "A1", Name: "Alpha"}, &models.Airstrip{Ident: "A2", Name: "Bravo"})

	got, err := db.Airstrips().ListByIdents([]string{"A2", "NOPE"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A2", got[0].Ident)

	got, err = db.Airstrips().ListByIdents(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAirstrips_LoadFromCSV(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	csvPath := filepath.Join(t.TempDir(), "airstrips.csv")
	content := "ident,name,is_base,bases\n" +
		"WAJJ,Sentani,true,\n" +
		"WAVV,Wamena,yes,WAJJ\n" +
		"\"KRB\",Karubaga,0,WAJJ;WAVV\n" +
		"BAD,row\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	populated, err := db.Airstrips().IsTablePopulated()
	require.NoError(t, err)
	assert.False(t, populated)

	require.NoError(t, db.Airstrips().LoadFromCSV(csvPath, 2))

	all, err := db.Airstrips().List()
	require.NoError(t, err)
	assert.Equal(t, []string{"KRB", "WAJJ", "WAVV"}, identsOf(all))

	bases, err := db.Airstrips().ListBases()
	require.NoError(t, err)
	assert.Equal(t, []string{"WAJJ", "WAVV"}, identsOf(bases))

	sentani, err := db.Airstrips().GetByIdent("WAJJ")
	require.NoError(t, err)
	attached, err := db.Airstrips().Attached(sentani.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"KRB", "WAVV"}, identsOf(attached))

	populated, err = db.Airstrips().IsTablePopulated()
	require.NoError(t, err)
	assert.True(t, populated)
}

func TestAircraftTypes_LoadFromCSV(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	csvPath := filepath.Join(t.TempDir(), "types.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name\nC185\nPC-6\nC185\n"), 0o644))

	require.NoError(t, db.AircraftTypes().LoadFromCSV(csvPath, 10))

	types, err := db.AircraftTypes().List()
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "C185", types[0].Name)

	byName, err := db.AircraftTypes().ListByNames([]string{"PC-6"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "PC-6", byName[0].Name)
}

func TestCheckouts_CreateFindDelete(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	pilot := &models.Pilot{Username: "jdoe", IsPilot: true}
	require.NoError(t, db.Pilots().Create(pilot))
	strip := &models.Airstrip{Ident: "A1", Name: "Alpha"}
	seedAirstrips(t, db, strip)
	c185 := &models.AircraftType{Name: "C185"}
	pc6 := &models.AircraftType{Name: "PC-6"}
	require.NoError(t, db.AircraftTypes().Create(c185))
	require.NoError(t, db.AircraftTypes().Create(pc6))

	repo := db.Checkouts()
	checkout := &models.Checkout{Pilot: *pilot, Airstrip: *strip, AircraftType: *c185}
	require.NoError(t, repo.Create(checkout))
	assert.NotZero(t, checkout.ID)

	found, err := repo.Find(pilot.ID, strip.ID, []int64{c185.ID, pc6.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "C185", found[0].AircraftType.Name)
	assert.Equal(t, "jdoe", found[0].Pilot.Username)

	found, err = repo.Find(pilot.ID, strip.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, found)

	listed, err := repo.List(CheckoutFilter{AirstripIDs: []int64{strip.ID}})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, repo.Delete(checkout.ID))
	listed, err = repo.List(CheckoutFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSnapshotAndExportFixtures(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	pilot := &models.Pilot{Username: "jdoe", IsPilot: true, PasswordHash: "hash"}
	require.NoError(t, db.Pilots().Create(pilot))
	base := &models.Airstrip{Ident: "KXYZ", Name: "Base", IsBase: true}
	strip := &models.Airstrip{Ident: "A1", Name: "Alpha"}
	seedAirstrips(t, db, base, strip)
	require.NoError(t, db.Airstrips().Attach(strip.ID, base.ID))

	fixtures, err := db.ExportFixtures()
	require.NoError(t, err)

	lens := map[string]int{}
	for _, f := range fixtures {
		lens[f.Name] = f.Len
	}
	assert.Equal(t, map[string]int{
		"pilots":         1,
		"airstrips":      2,
		"attachments":    1,
		"aircraft_types": 0,
		"checkouts":      0,
	}, lens)

	snapshot := filepath.Join(t.TempDir(), "snapshot.sqlite3")
	require.NoError(t, db.Snapshot(snapshot))

	copied, err := New(snapshot)
	require.NoError(t, err)
	defer copied.Close()
	got, err := copied.Pilots().GetByUsername("jdoe")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
}

func identsOf(airstrips []models.Airstrip) []string {
	idents := make([]string, 0, len(airstrips))
	for _, a := range airstrips {
		idents = append(idents, a.Ident)
	}
	return idents
}

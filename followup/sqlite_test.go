package followup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/showroom/crm"
	"github.com/GoCodeAlone/showroom/internal/sqlitedb"
	"github.com/GoCodeAlone/showroom/message"
	"github.com/GoCodeAlone/showroom/task"
)

func TestRun_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "showroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clients, err := crm.NewSQLiteStore(db)
	require.NoError(t, err)
	tasks, err := task.NewSQLiteStore(db)
	require.NoError(t, err)

	today := date(2024, 1, 1)

	shopperID, err := clients.CreateClient(ctx, &crm.Client{Name: "ada lovelace", Phone: "555-0100", Since: today})
	require.NoError(t, err)
	_, err = clients.AddRoomSketch(ctx, &crm.RoomSketch{ClientID: shopperID, RoomType: "den", DesiredFurniture: "sectional"})
	require.NoError(t, err)

	buyerID, err := clients.CreateClient(ctx, &crm.Client{Name: "Bob Stone", Email: "bob@example.com"})
	require.NoError(t, err)
	_, err = clients.CreateSale(ctx, &crm.Sale{ClientID: buyerID, Status: crm.SaleClosed, Date: "2023-01-01", Amount: 1800})
	require.NoError(t, err)

	inactiveID, err := clients.CreateClient(ctx, &crm.Client{Name: "Cy Gone", Phone: "555-0199", Since: today})
	require.NoError(t, err)
	require.NoError(t, clients.SetClientStatus(ctx, inactiveID, crm.ClientInactive))

	gen := NewGenerator(clients, tasks, message.TemplateComposer{Salesperson: "Sam"}, Options{})

	report, err := gen.RunOn(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Clients)
	assert.Equal(t, 2, report.Created)
	assert.Empty(t, report.Failures)

	due, err := tasks.List(ctx, task.DueOn(today))
	require.NoError(t, err)
	require.Len(t, due, 2)

	byClient := map[string]*task.Task{}
	for _, tk := range due {
		byClient[tk.ClientID] = tk
	}
	require.Contains(t, byClient, shopperID)
	assert.Equal(t, "Send shopping recap or thank-you", byClient[shopperID].Description)
	assert.Equal(t, "Hi Ada, it was great chatting with you! Let me know if you have any questions or need help narrowing down choices.",
		byClient[shopperID].Message)

	require.Contains(t, byClient, buyerID)
	assert.Equal(t, "Happy anniversary follow-up", byClient[buyerID].Description)
	assert.Contains(t, byClient[buyerID].Message, "Hey Bob")

	// Same day again: nothing new.
	again, err := gen.RunOn(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	all, err := tasks.List(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Completing a task stamps the client's last contact.
	at := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	done, err := CompleteTask(ctx, tasks, clients, byClient[buyerID].ID, at)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	bob, err := clients.GetClient(ctx, buyerID)
	require.NoError(t, err)
	require.NotNil(t, bob.LastContact)
	assert.True(t, at.Equal(*bob.LastContact))
}

func TestRun_SQLiteClientWithoutSinceGetsRecap(t *testing.T) {
	ctx := context.Background()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "showroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clients, err := crm.NewSQLiteStore(db)
	require.NoError(t, err)
	tasks, err := task.NewSQLiteStore(db)
	require.NoError(t, err)

	id, err := clients.CreateClient(ctx, &crm.Client{Name: "New Shopper", Phone: "555-0123"})
	require.NoError(t, err)
	c, err := clients.GetClient(ctx, id)
	require.NoError(t, err)
	require.NotZero(t, c.Since)

	gen := NewGenerator(clients, tasks, message.TemplateComposer{Salesperson: "Sam"}, Options{})
	report, err := gen.RunOn(ctx, c.Since)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, report.Failures)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, "Send shopping recap or thank-you", report.Tasks[0].Description)
}

package main

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/showroom/crm"
)

// importCmd loads clients, sales and room sketches from a YAML file
var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import clients with their sales and room sketches",
	Long: `Imports CRM records from a YAML file:

  clients:
    - name: Ada Lovelace
      phone: 555-0100
      since: 2024-01-01
      sales:
        - {status: Closed, date: 2023-01-01, amount: 1800}
      sketches:
        - {room_type: den, desired_furniture: sectional}`,
	Args: cobra.ExactArgs(1),
	RunE: importClients,
}

type seedFile struct {
	Clients []seedClient `yaml:"clients"`
}

type seedClient struct {
	Name     string       `yaml:"name"`
	Phone    string       `yaml:"phone"`
	Email    string       `yaml:"email"`
	Address  string       `yaml:"address"`
	Rooms    string       `yaml:"rooms"`
	Style    string       `yaml:"style"`
	Budget   string       `yaml:"budget"`
	Status   string       `yaml:"status"`
	Since    string       `yaml:"since"`
	Sales    []seedSale   `yaml:"sales"`
	Sketches []seedSketch `yaml:"sketches"`
}

type seedSale struct {
	Status string  `yaml:"status"`
	Date   string  `yaml:"date"`
	Amount float64 `yaml:"amount"`
	Notes  string  `yaml:"notes"`
}

type seedSketch struct {
	RoomType              string `yaml:"room_type"`
	Dimensions            string `yaml:"dimensions"`
	LayoutNotes           string `yaml:"layout_notes"`
	CurrentFurniture      string `yaml:"current_furniture"`
	DesiredFurniture      string `yaml:"desired_furniture"`
	SpecialConsiderations string `yaml:"special_considerations"`
}

func importClients(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var sales, sketches int
	for i, sc := range seed.Clients {
		n, m, err := importClient(ctx, a.clients, sc)
		if err != nil {
			return fmt.Errorf("client %d (%s): %w", i+1, sc.Name, err)
		}
		sales += n
		sketches += m
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d clients, %d sales, %d room sketches\n",
		len(seed.Clients), sales, sketches)
	return nil
}

func importClient(ctx context.Context, store *crm.SQLiteStore, sc seedClient) (sales, sketches int, err error) {
	c := &crm.Client{
		Name:    sc.Name,
		Phone:   sc.Phone,
		Email:   sc.Email,
		Address: sc.Address,
		Rooms:   sc.Rooms,
		Style:   sc.Style,
		Budget:  sc.Budget,
	}
	if sc.Status != "" {
		if c.Status, err = crm.ParseClientStatus(sc.Status); err != nil {
			return 0, 0, err
		}
	}
	if sc.Since != "" {
		if c.Since, err = civil.ParseDate(sc.Since); err != nil {
			return 0, 0, fmt.Errorf("since: %w", err)
		}
	}
	id, err := store.CreateClient(ctx, c)
	if err != nil {
		return 0, 0, err
	}

	for _, ss := range sc.Sales {
		status, err := crm.ParseSaleStatus(ss.Status)
		if err != nil {
			return sales, sketches, err
		}
		if _, err := store.CreateSale(ctx, &crm.Sale{
			ClientID: id,
			Status:   status,
			Date:     ss.Date,
			Amount:   ss.Amount,
			Notes:    ss.Notes,
		}); err != nil {
			return sales, sketches, err
		}
		sales++
	}
	for _, sk := range sc.Sketches {
		if _, err := store.AddRoomSketch(ctx, &crm.RoomSketch{
			ClientID:              id,
			RoomType:              sk.RoomType,
			Dimensions:            sk.Dimensions,
			LayoutNotes:           sk.LayoutNotes,
			CurrentFurniture:      sk.CurrentFurniture,
			DesiredFurniture:      sk.DesiredFurniture,
			SpecialConsiderations: sk.SpecialConsiderations,
		}); err != nil {
			return sales, sketches, err
		}
		sketches++
	}
	return sales, sketches, nil
}

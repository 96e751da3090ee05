package knowledge

import (
	"context"
	"fmt"
)

// StarterArticles is the initial guide set loaded by `helpdesk seed`.
func StarterArticles() []Article {
	return []Article{
		{
			Title:    "How to Factory Reset Your HC-1",
			Category: "Device Setup",
			Tags:     []string{"reset", "factory", "hc-1"},
			Content: "To factory reset your HC-1:\n" +
				"1. Power off by holding the power button for 5 seconds\n" +
				"2. Hold Volume Up + Power for 10 seconds\n" +
				"3. Release at the boot logo\n" +
				"4. Select 'Factory Reset' from the recovery menu\n" +
				"5. Confirm with the power button\n\n" +
				"Note: this erases all data. Back up first.",
		},
		{
			Title:    "Setting Up Ethernet on the HC-1",
			Category: "Connectivity",
			Tags:     []string{"ethernet", "network", "usb-c"},
			Content: "The HC-1 supports Ethernet via USB-C adapters.\n\n" +
				"Setup:\n1. Plug the adapter into the HC-1\n2. Connect the Ethernet cable\n" +
				"3. The connection is auto-detected\n4. Verify in Settings > Network\n\n" +
				"Troubleshooting: use a USB 3.0 adapter, try another port, restart the device, check DHCP.",
		},
		{
			Title:    "App Installation and Compatibility",
			Category: "Apps",
			Tags:     []string{"apps", "install", "sideload"},
			Content: "App Store: browse, search, tap Install.\n\n" +
				"Sideloading: Settings > Security > Unknown Sources, download the package, open it from the file manager.\n\n" +
				"Incompatible: GPU-heavy games and apps requiring proprietary push services.",
		},
		{
			Title:    "Display Care and Troubleshooting",
			Category: "Display",
			Tags:     []string{"display", "ghosting", "outdoor"},
			Content: "Cleaning: soft microfiber cloth and distilled water only.\n\n" +
				"Ghosting: Settings > Display > Refresh > Full Refresh; repeat five times if it persists.\n\n" +
				"Outdoor: the reflective display excels in sunlight. Enable Settings > Display > Outdoor Mode.",
		},
		{
			Title:    "Battery Optimization Guide",
			Category: "Battery",
			Tags:     []string{"battery", "charging", "power"},
			Content: "Battery life: 8-10h standard use, 12-15h reading.\n\n" +
				"Tips: enable Battery Saver, reduce refresh rate, turn off Bluetooth and Wi-Fi when unused.\n\n" +
				"Charging: 30W USB-C, full in 2 hours. Keep between 20% and 80% for longevity.",
		},
		{
			Title:    "Troubleshooting Common Issues",
			Category: "Troubleshooting",
			Tags:     []string{"troubleshoot", "fix", "help"},
			Content: "Won't turn on: hold power 15 seconds, charge 30 minutes, try a different cable.\n\n" +
				"Wi-Fi: toggle off and on, forget and reconnect, restart the router.\n\n" +
				"Touch unresponsive: clean the screen, remove the protector, restart, recalibrate in Settings > Display.",
		},
	}
}

// Seed loads the starter articles unless the knowledge base already has
// content. Returns the number of articles inserted (zero when already
// seeded).
func (s *Store) Seed(ctx context.Context) (int, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("knowledge base already seeded", "articles", count)
		return 0, nil
	}

	articles := StarterArticles()
	for _, a := range articles {
		if err := s.Insert(ctx, a); err != nil {
			return 0, fmt.Errorf("seed article %q: %w", a.Title, err)
		}
	}
	s.logger.Info("knowledge base seeded", "articles", len(articles))
	return len(articles), nil
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/rolegate/rolegate/config"
	"github.com/rolegate/rolegate/internal/storage"
	"github.com/spf13/cobra"
)

var assetsSourceDir string

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Manage static assets",
}

var assetsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload a local asset directory to the configured bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := mustLoad()
		if cfg.Assets.Backend == config.AssetsBackendLocal {
			return fmt.Errorf("ASSETS_BACKEND is %q; push needs minio or gcs", cfg.Assets.Backend)
		}
		ctx := cmd.Context()

		dest, err := storage.Open(ctx, cfg.Assets)
		if err != nil {
			return err
		}
		if err := dest.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}

		src, err := storage.NewLocalStorage(assetsSourceDir)
		if err != nil {
			return err
		}
		pushed := 0
		err = src.Walk(func(key string, size int64) error {
			obj, err := src.Get(ctx, key)
			if err != nil {
				return err
			}
			defer obj.Body.Close()
			if err := dest.Put(ctx, key, obj.Body, size, obj.ContentType); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
			log.WithField("key", key).Debug("asset uploaded")
			pushed++
			return nil
		})
		if err != nil {
			return err
		}
		log.WithField("count", pushed).Info("assets pushed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(assetsCmd)
	assetsCmd.AddCommand(assetsPushCmd)

	assetsPushCmd.Flags().StringVar(&assetsSourceDir, "dir", "web/static", "local directory to upload")
}

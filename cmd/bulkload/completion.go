// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/errors"
)

// bashCompletionTemplate is the bash completion script for bulkload.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for bulkload
# Installation:
#   source <(bulkload completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(bulkload completion bash)' >> ~/.bashrc

_bulkload_completion() {
    local cur prev commands
    commands="init serve upload import entities report completion"

    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${cur} == -* ]] && [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "--version --config --json --quiet --no-color --verbose" -- ${cur}) )
        return 0
    fi

    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        init)
            COMPREPLY=( $(compgen -W "--force --yes --engine --data-dir --mongo-uri --mongo-database --addr" -- ${cur}) )
            ;;
        serve)
            COMPREPLY=( $(compgen -W "--addr --engine --data-dir" -- ${cur}) )
            ;;
        upload)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--server --timeout --stream --all" -- ${cur}) )
            elif [ $COMP_CWORD -eq 3 ]; then
                COMPREPLY=( $(compgen -f -X '!*.@(csv|xlsx|xls)' -- ${cur}) )
            fi
            ;;
        import)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--batch-size --concurrency --stream --all --metrics-addr" -- ${cur}) )
            elif [ $COMP_CWORD -eq 3 ]; then
                COMPREPLY=( $(compgen -f -X '!*.@(csv|xlsx|xls)' -- ${cur}) )
            fi
            ;;
        report)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "list show delete" -- ${cur}) )
            else
                COMPREPLY=( $(compgen -W "--all --limit" -- ${cur}) )
            fi
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _bulkload_completion bulkload
`

// zshCompletionTemplate is the zsh completion script for bulkload.
const zshCompletionTemplate = `#compdef bulkload

# Zsh completion script for bulkload
# Installation:
#   bulkload completion zsh > "${fpath[1]}/_bulkload"
#   rm -f ~/.zcompdump; compinit

_bulkload() {
    local -a commands
    commands=(
        'init:Create .bulkload/config.yaml and prepare the store'
        'serve:Start the upload server'
        'upload:Upload a file to a running server'
        'import:Reconcile a file against the configured store'
        'entities:Show registered entities and accepted headers'
        'report:List, show or delete saved upload reports'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to .bulkload/config.yaml]:config file:_files -g "*.yaml"' \
        '--json[Output as JSON]' \
        '(-q --quiet)'{-q,--quiet}'[Suppress progress output]' \
        '--no-color[Disable colored output]' \
        '*'{-v,--verbose}'[Increase log verbosity]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                init)
                    _arguments \
                        '--force[Overwrite existing configuration]' \
                        '(-y --yes)'{-y,--yes}'[Use defaults]' \
                        '--engine[Store engine]:engine:(bolt mem mongo)' \
                        '--data-dir[Bolt data directory]:directory:_files -/' \
                        '--mongo-uri[MongoDB connection string]:uri:' \
                        '--mongo-database[MongoDB database]:database:' \
                        '--addr[Server listen address]:address:'
                    ;;
                serve)
                    _arguments \
                        '--addr[Listen address]:address:' \
                        '--engine[Store engine]:engine:(bolt mem mongo)' \
                        '--data-dir[Bolt data directory]:directory:_files -/'
                    ;;
                upload)
                    _arguments \
                        '--server[Server base URL]:url:' \
                        '--timeout[Abort after duration]:duration:' \
                        '--stream[Print snapshots as NDJSON]' \
                        '--all[List every row outcome]' \
                        '1:entity:' \
                        '2:file:_files -g "*.(csv|xlsx|xls)"'
                    ;;
                import)
                    _arguments \
                        '--batch-size[Rows per batch]:rows:' \
                        '--concurrency[Batches in flight]:count:' \
                        '--stream[Print snapshots as NDJSON]' \
                        '--all[List every row outcome]' \
                        '--metrics-addr[Prometheus metrics address]:address:' \
                        '1:entity:' \
                        '2:file:_files -g "*.(csv|xlsx|xls)"'
                    ;;
                report)
                    _arguments \
                        '--all[List every row outcome]' \
                        '--limit[Maximum reports listed]:count:' \
                        '1:command:(list show delete)'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_bulkload
`

// fishCompletionTemplate is the fish completion script for bulkload.
const fishCompletionTemplate = `# Fish completion script for bulkload
# Installation:
#   bulkload completion fish > ~/.config/fish/completions/bulkload.fish

complete -c bulkload -f -n "__fish_use_subcommand" -a "init" -d "Create .bulkload/config.yaml and prepare the store"
complete -c bulkload -f -n "__fish_use_subcommand" -a "serve" -d "Start the upload server"
complete -c bulkload -f -n "__fish_use_subcommand" -a "upload" -d "Upload a file to a running server"
complete -c bulkload -f -n "__fish_use_subcommand" -a "import" -d "Reconcile a file against the configured store"
complete -c bulkload -f -n "__fish_use_subcommand" -a "entities" -d "Show registered entities and accepted headers"
complete -c bulkload -f -n "__fish_use_subcommand" -a "report" -d "List, show or delete saved upload reports"
complete -c bulkload -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

complete -c bulkload -l version -d "Show version and exit"
complete -c bulkload -l config -d "Path to .bulkload/config.yaml" -r
complete -c bulkload -l json -d "Output as JSON"
complete -c bulkload -s q -l quiet -d "Suppress progress output"
complete -c bulkload -l no-color -d "Disable colored output"
complete -c bulkload -s v -l verbose -d "Increase log verbosity"

complete -c bulkload -n "__fish_seen_subcommand_from init" -l force -d "Overwrite existing configuration"
complete -c bulkload -n "__fish_seen_subcommand_from init" -s y -l yes -d "Use defaults"
complete -c bulkload -n "__fish_seen_subcommand_from init serve" -l engine -d "Store engine" -xa "bolt mem mongo"
complete -c bulkload -n "__fish_seen_subcommand_from init serve" -l data-dir -d "Bolt data directory" -r
complete -c bulkload -n "__fish_seen_subcommand_from init serve" -l addr -d "Listen address" -r
complete -c bulkload -n "__fish_seen_subcommand_from init" -l mongo-uri -d "MongoDB connection string" -r
complete -c bulkload -n "__fish_seen_subcommand_from init" -l mongo-database -d "MongoDB database" -r

complete -c bulkload -n "__fish_seen_subcommand_from upload" -l server -d "Server base URL" -r
complete -c bulkload -n "__fish_seen_subcommand_from upload" -l timeout -d "Abort after duration" -r
complete -c bulkload -n "__fish_seen_subcommand_from upload import" -l stream -d "Print snapshots as NDJSON"
complete -c bulkload -n "__fish_seen_subcommand_from upload import report" -l all -d "List every row outcome"
complete -c bulkload -n "__fish_seen_subcommand_from import" -l batch-size -d "Rows per batch" -r
complete -c bulkload -n "__fish_seen_subcommand_from import" -l concurrency -d "Batches in flight" -r
complete -c bulkload -n "__fish_seen_subcommand_from import" -l metrics-addr -d "Prometheus metrics address" -r

complete -c bulkload -n "__fish_seen_subcommand_from report" -f -a "list show delete"
complete -c bulkload -n "__fish_seen_subcommand_from report" -l limit -d "Maximum reports listed" -r

complete -c bulkload -n "__fish_seen_subcommand_from completion" -f -a "bash zsh fish"
`

// runCompletion executes the 'completion' CLI command, writing the completion
// script for bash, zsh or fish to stdout.
//
// Usage:
//
//	bulkload completion [bash|zsh|fish]
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bulkload completion <shell>

Generate shell completion scripts for bash, zsh, or fish.

Examples:
  source <(bulkload completion bash)
  bulkload completion zsh > "${fpath[1]}/_bulkload"
  bulkload completion fish > ~/.config/fish/completions/bulkload.fish

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'bulkload completion bash', 'bulkload completion zsh', or 'bulkload completion fish'",
		), false)
	}

	script, err := completionScript(fs.Arg(0))
	if err != nil {
		errors.FatalError(err, false)
	}
	fmt.Print(script)
}

func completionScript(shell string) (string, error) {
	switch shell {
	case "bash":
		return bashCompletionTemplate, nil
	case "zsh":
		return zshCompletionTemplate, nil
	case "fish":
		return fishCompletionTemplate, nil
	}
	return "", errors.NewInputError(
		fmt.Sprintf("Unsupported shell: %s", shell),
		"Only bash, zsh, and fish are supported",
		"Run 'bulkload completion bash', 'bulkload completion zsh', or 'bulkload completion fish'",
	)
}
